package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"parcel-locator/internal/domain/locate"
)

func TestWriteSearch(t *testing.T) {
	result := &locate.LocateResult{
		SearchID:  uuid.New(),
		Method:    locate.MethodVisual,
		CreatedAt: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		Evaluated: 12,
		Candidates: []locate.RankedCandidate{
			{
				ParcelID:      "33063000AB0123",
				Address:       "12 Rue des Lilas, 33000 Bordeaux",
				Coordinates:   locate.LatLng{Lat: 44.8378, Lng: -0.5792},
				MatchingScore: locate.MatchingScore{Global: 74, Details: locate.ScoreDetails{PoolSimilarity: 95}},
				Explanation:   "matches",
				Visuals:       locate.CandidateVisuals{CadastreURL: "https://cadastre.example"},
			},
			{ParcelID: "33063000AB0124", MatchingScore: locate.MatchingScore{Global: 41}},
		},
		AddressHypotheses: []locate.GeocodedCandidate{{Address: "12 Rue des Lilas, 33000 Bordeaux", GlobalScore: 0.91}},
	}

	var buf bytes.Buffer
	if err := WriteSearch(&buf, result); err != nil {
		t.Fatalf("WriteSearch: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(CandidatesSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][2] != "Address" || rows[1][1] != "33063000AB0123" || rows[1][5] != "74" || rows[1][6] != "95" {
		t.Errorf("unexpected rows: %v", rows[:2])
	}
	if rows[1][14] != "https://cadastre.example" {
		t.Errorf("cadastre url = %q", rows[1][14])
	}

	summary, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("GetRows summary: %v", err)
	}
	if summary[0][1] != result.SearchID.String() || summary[len(summary)-1][0] != "Address hypothesis" {
		t.Errorf("summary = %v", summary)
	}
}
