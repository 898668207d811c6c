package featuresource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	domainErrors "github.com/polkiloo/plotcatalog/internal/domain/errors"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::32737"}},
  "features": [
    {"type": "Feature", "id": "MBY-7", "properties": {"district": "Kinondoni"},
     "geometry": {"type": "Polygon", "coordinates": [[[500000, 9300000], [500100, 9300000], [500100, 9300100], [500000, 9300000]]]}},
    {"type": "Feature", "properties": {"plot_code": "A-1"}, "geometry": {"type": "Polygon", "coordinates": "broken"}},
    {"type": "Feature", "properties": null,
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[500000, 9300000], [500100, 9300000], [500100, 9300100], [500000, 9300000]]]]}}
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestDecode(t *testing.T) {
	c, err := Decode([]byte(sampleCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CRS != "urn:ogc:def:crs:EPSG::32737" {
		t.Fatalf("unexpected crs %q", c.CRS)
	}
	if len(c.Hash) != 64 {
		t.Fatalf("expected hex sha256, got %q", c.Hash)
	}
	if len(c.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(c.Features))
	}

	first := c.Features[0]
	if first.Err != nil {
		t.Fatalf("unexpected feature error: %v", first.Err)
	}
	if _, ok := first.Geometry.(orb.Polygon); !ok {
		t.Fatalf("expected polygon, got %T", first.Geometry)
	}
	if first.Properties["plot_id"] != "MBY-7" || first.Properties["district"] != "Kinondoni" {
		t.Fatalf("unexpected properties %+v", first.Properties)
	}

	if c.Features[1].Err == nil {
		t.Fatal("expected malformed feature to carry an error")
	}
	if third := c.Features[2]; third.Err != nil || third.Properties == nil {
		t.Fatalf("expected empty properties map, got %+v", third)
	}

	again, _ := Decode([]byte(sampleCollection))
	if again.Hash != c.Hash {
		t.Fatal("hash must be deterministic")
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "plots"},
		{"single feature", `{"type": "Feature", "geometry": null, "properties": {}}`},
		{"features not array", `{"type": "FeatureCollection", "features": {}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.body)); !errors.Is(err, domainErrors.ErrInvalidImport) {
				t.Fatalf("expected invalid import, got %v", err)
			}
		})
	}
}

func TestLegacyCRSCodes(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"type":"FeatureCollection","crs":{"type":"EPSG","properties":{"code":21037}},"features":[]}`, "EPSG:21037"},
		{`{"type":"FeatureCollection","crs":{"type":"EPSG","properties":{"code":"4326"}},"features":[]}`, "EPSG:4326"},
		{`{"type":"FeatureCollection","features":[]}`, ""},
	}
	for _, tc := range cases {
		c, err := Decode([]byte(tc.body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.CRS != tc.want {
			t.Fatalf("expected crs %q, got %q", tc.want, c.CRS)
		}
	}
}

func TestHTTPClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "geo+json") {
			t.Errorf("unexpected accept header %q", r.Header.Get("Accept"))
		}
		_, _ = io.WriteString(w, sampleCollection)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(time.Second, 0, testLogger()).Fetch(context.Background(), srv.URL+"/plots.geojson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(c.Features))
	}
}

func TestHTTPClientValidatesURL(t *testing.T) {
	client := NewHTTPClient(0, 0, testLogger())
	for _, raw := range []string{"://bad-url", "/relative", "ftp://example.com/plots.geojson"} {
		if _, err := client.Fetch(context.Background(), raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestHTTPClientRetriesAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, sampleCollection)
	}))
	defer srv.Close()

	var waited []time.Duration
	client := NewHTTPClient(time.Second, 0, testLogger())
	client.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	if _, err := client.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waited) != 1 || waited[0] != 2*time.Second {
		t.Fatalf("expected one 2s wait, got %v", waited)
	}
}

func TestHTTPClientGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second, 0, testLogger())
	client.sleep = noSleep

	_, err := client.Fetch(context.Background(), srv.URL)
	var limited TooManyRequestsError
	if !errors.As(err, &limited) || limited.RetryAfter != defaultRetryAfter {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls)
	}
}

func TestHTTPClientErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		if _, err := NewHTTPClient(time.Second, 0, testLogger()).Fetch(context.Background(), srv.URL); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("payload too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, sampleCollection)
		}))
		defer srv.Close()
		_, err := NewHTTPClient(time.Second, 16, testLogger()).Fetch(context.Background(), srv.URL)
		if !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("expected payload too large, got %v", err)
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		client := NewHTTPClient(time.Second, 0, testLogger())
		client.sleep = func(ctx context.Context, d time.Duration) error {
			cancel()
			return sleepContext(ctx, d)
		}
		if _, err := client.Fetch(ctx, srv.URL); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", defaultRetryAfter},
		{"3", 3 * time.Second},
		{"-4", 0},
		{"3600", maxRetryAfter},
		{"soon", defaultRetryAfter},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.header); got != tc.want {
			t.Fatalf("header %q: expected %v, got %v", tc.header, tc.want, got)
		}
	}
	if got := parseRetryAfter(time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)); got != 0 {
		t.Fatalf("expected past date to clamp to zero, got %v", got)
	}
}
