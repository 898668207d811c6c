package export

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/planar"
	"github.com/xuri/excelize/v2"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

const (
	PlotsSheet   = "Plots"
	SummarySheet = "Summary"

	// ContentType is the media type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var plotHeader = []any{
	"ID", "Plot code", "Status", "Area (ha)", "District", "Ward", "Village",
	"Dataset", "Centroid lon", "Centroid lat", "Updated at",
}

// WritePlots renders plots into an XLSX workbook with a per-status summary
// sheet and writes it to w.
func WritePlots(w io.Writer, plots []model.LandPlot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PlotsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writePlotRows(f, bold, plots); err != nil {
		return err
	}
	if err := writeSummary(f, bold, plots); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writePlotRows(f *excelize.File, headerStyle int, plots []model.LandPlot) error {
	sw, err := f.NewStreamWriter(PlotsSheet)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(1, 1, 38); err != nil {
		return err
	}
	if err := sw.SetColWidth(2, len(plotHeader), 14); err != nil {
		return err
	}
	if err := sw.SetRow("A1", plotHeader, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}

	for i, p := range plots {
		centroid, _ := planar.CentroidArea(p.Geometry)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			p.ID.String(),
			p.PlotCode,
			string(p.Status),
			p.AreaHectares.InexactFloat64(),
			p.District,
			p.Ward,
			p.Village,
			p.Dataset,
			centroid.Lon(),
			centroid.Lat(),
			p.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func writeSummary(f *excelize.File, headerStyle int, plots []model.LandPlot) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	type tally struct {
		count int
		area  float64
	}
	byStatus := map[model.PlotStatus]*tally{
		model.PlotStatusAvailable: {},
		model.PlotStatusPending:   {},
		model.PlotStatusTaken:     {},
	}
	for _, p := range plots {
		if t, ok := byStatus[p.Status]; ok {
			t.count++
			t.area += p.AreaHectares.InexactFloat64()
		}
	}

	rows := [][]any{
		{"Status", "Plots", "Area (ha)"},
		{string(model.PlotStatusAvailable), byStatus[model.PlotStatusAvailable].count, byStatus[model.PlotStatusAvailable].area},
		{string(model.PlotStatusPending), byStatus[model.PlotStatusPending].count, byStatus[model.PlotStatusPending].area},
		{string(model.PlotStatusTaken), byStatus[model.PlotStatusTaken].count, byStatus[model.PlotStatusTaken].area},
		{"total", len(plots), nil},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SummarySheet, "A1", "C1", headerStyle)
}
