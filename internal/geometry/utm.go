package geometry

import "math"

type ellipsoid struct {
	a float64
	f float64
}

var (
	wgs84Ellipsoid   = ellipsoid{a: 6378137.0, f: 1 / 298.257223563}
	clarke1880RGS    = ellipsoid{a: 6378249.145, f: 1 / 293.465}
	utmScale         = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 10000000.0
)

func (e ellipsoid) e2() float64 { return e.f * (2 - e.f) }

// datum is a geodetic datum related to WGS 84 by a geocentric translation.
type datum struct {
	ellipsoid  ellipsoid
	dx, dy, dz float64
}

// arc1960 is the Arc 1960 datum used by Tanzanian and Kenyan surveys.
var arc1960 = datum{ellipsoid: clarke1880RGS, dx: -160, dy: -6, dz: -302}

func centralMeridian(zone int) float64 {
	return float64(zone-1)*6 - 180 + 3
}

// utmZone returns the UTM zone for a longitude.
func utmZone(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		return 1
	}
	if zone > 60 {
		return 60
	}
	return zone
}

func meridianArc(e ellipsoid, phi float64) float64 {
	e2 := e.e2()
	e4 := e2 * e2
	e6 := e4 * e2
	return e.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// utmForward projects geographic degrees into UTM metres.
func utmForward(e ellipsoid, zone int, south bool, lon, lat float64) (float64, float64) {
	e2 := e.e2()
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	dLambda := (lon - centralMeridian(zone)) * math.Pi / 180

	sinPhi, cosPhi := math.Sincos(phi)
	n := e.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * dLambda
	m := meridianArc(e, phi)

	x := utmScale*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmFalseEasting
	y := utmScale * (m + n*math.Tan(phi)*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if south {
		y += utmFalseNorthing
	}
	return x, y
}

// utmInverse converts UTM metres back into geographic degrees.
func utmInverse(e ellipsoid, zone int, south bool, x, y float64) (float64, float64) {
	e2 := e.e2()
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	x -= utmFalseEasting
	if south {
		y -= utmFalseNorthing
	}

	m := y / utmScale
	mu := m / (e.a * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu + (3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)
	n1 := e.a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	t1 := tanPhi1 * tanPhi1
	c1 := ep2 * cosPhi1 * cosPhi1
	r1 := e.a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * utmScale)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lambda := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi1

	return centralMeridian(zone) + lambda*180/math.Pi, phi * 180 / math.Pi
}

// toWGS84 shifts geographic coordinates on d into WGS 84 through
// geocentric coordinates.
func (d datum) toWGS84(lon, lat float64) (float64, float64) {
	x, y, z := geodeticToGeocentric(d.ellipsoid, lon, lat)
	return geocentricToGeodetic(wgs84Ellipsoid, x+d.dx, y+d.dy, z+d.dz)
}

func geodeticToGeocentric(e ellipsoid, lon, lat float64) (float64, float64, float64) {
	e2 := e.e2()
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	sinPhi, cosPhi := math.Sincos(phi)
	n := e.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	return n * cosPhi * math.Cos(lambda), n * cosPhi * math.Sin(lambda), n * (1 - e2) * sinPhi
}

func geocentricToGeodetic(e ellipsoid, x, y, z float64) (float64, float64) {
	e2 := e.e2()
	p := math.Hypot(x, y)
	lambda := math.Atan2(y, x)
	phi := math.Atan2(z, p*(1-e2))
	for i := 0; i < 8; i++ {
		sinPhi := math.Sin(phi)
		n := e.a / math.Sqrt(1-e2*sinPhi*sinPhi)
		h := p/math.Cos(phi) - n
		phi = math.Atan2(z, p*(1-e2*n/(n+h)))
	}
	return lambda * 180 / math.Pi, phi * 180 / math.Pi
}
