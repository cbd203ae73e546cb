package repository

import (
	"testing"
	"time"
)

func TestDVFMutationReference(t *testing.T) {
	date := time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		m           DVFMutation
		wantSurface float64
	}{
		{"land surface", DVFMutation{ParcelID: "33063000AB0123", Price: 420000, LandSurface: 610, BuiltSurface: 140, MutationDate: date}, 610},
		{"built surface only", DVFMutation{ParcelID: "33063000AB0124", Price: 250000, BuiltSurface: 95, MutationDate: date}, 95},
		{"no surface", DVFMutation{ParcelID: "33063000AB0125", Price: 180000, MutationDate: date}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := tt.m.Reference()
			if ref.Surface != tt.wantSurface {
				t.Errorf("surface = %v, want %v", ref.Surface, tt.wantSurface)
			}
			if ref.ParcelID != tt.m.ParcelID || ref.Price != tt.m.Price || !ref.Date.Equal(date) {
				t.Errorf("reference = %+v", ref)
			}
		})
	}
}
