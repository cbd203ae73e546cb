package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"parcel-locator/internal/domain/locate"
)

const (
	CandidatesSheet = "Candidates"
	SummarySheet    = "Search"
)

var candidateHeader = []any{
	"Rank", "Parcel", "Address", "Latitude", "Longitude", "Global score",
	"Pool", "Architecture", "Vegetation", "Surface", "Orientation", "Context",
	"Explanation", "Satellite", "Cadastre", "Street view",
}

// WriteSearch writes a search result as an XLSX workbook: one summary sheet
// and one row per ranked candidate.
func WriteSearch(w io.Writer, result *locate.LocateResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CandidatesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeCandidates(f, result.Candidates); err != nil {
		return err
	}
	if err := writeSummary(f, result); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeCandidates(f *excelize.File, candidates []locate.RankedCandidate) error {
	if err := f.SetSheetRow(CandidatesSheet, "A1", &candidateHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(candidateHeader), 1)
	if err := f.SetCellStyle(CandidatesSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, c := range candidates {
		d := c.MatchingScore.Details
		row := []any{
			i + 1, c.ParcelID, c.Address, c.Coordinates.Lat, c.Coordinates.Lng, c.MatchingScore.Global,
			d.PoolSimilarity, d.ArchitectureMatch, d.VegetationMatch, d.SurfaceMatch, d.OrientationMatch, d.ContextMatch,
			c.Explanation, c.Visuals.SatelliteURL, c.Visuals.CadastreURL, c.Visuals.StreetViewURL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(CandidatesSheet, cell, &row); err != nil {
			return fmt.Errorf("write candidate %s: %w", c.ParcelID, err)
		}
	}

	_ = f.SetColWidth(CandidatesSheet, "C", "C", 45)
	_ = f.SetColWidth(CandidatesSheet, "M", "M", 80)
	return f.SetPanes(CandidatesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, result *locate.LocateResult) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Search", result.SearchID.String()},
		{"Created", result.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Method", string(result.Method)},
		{"Evaluated parcels", result.Evaluated},
		{"Partial", result.Partial},
		{"Pool in photo", result.Features.HasPool},
		{"Orientation", string(result.Features.Orientation)},
		{"Photo", result.PhotoURL},
	}
	for _, h := range result.AddressHypotheses {
		rows = append(rows, []any{"Address hypothesis", h.Address, h.GlobalScore})
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &r); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)
	_ = f.SetColWidth(SummarySheet, "B", "B", 50)
	return nil
}
