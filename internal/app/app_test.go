package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"parcel-locator/internal/config"
	"parcel-locator/internal/domain/locate"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Cadastre: config.CadastreConfig{
			BaseURL:     "http://127.0.0.1:1/cadastre",
			CommunesURL: "http://127.0.0.1:1",
		},
		Matching: config.MatchingConfig{
			DefaultCountry:  "FR",
			MatchWorkers:    2,
			GeocodeWorkers:  2,
			MaxRadiusMeters: 2000,
		},
	}
}

func TestBuildWithoutCredentials(t *testing.T) {
	components, err := Build(context.Background(), testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if components.Service == nil || components.Visuals == nil {
		t.Fatal("expected service and visuals to be built")
	}
	if components.Transactions != nil {
		t.Fatal("transactions need a database")
	}

	cands, err := components.Service.AddressCandidates("12 avenue des Pins 06600 Antibes", locate.Context{})
	if err != nil {
		t.Fatalf("AddressCandidates() error = %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("expected the generator to be wired")
	}
}

func TestBuildScoringWeightsFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "weights.yaml")
	if err := os.WriteFile(valid, []byte("pool: 4\ncontext: 0.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Matching.ScoringWeightsFile = valid
	if _, err := Build(context.Background(), cfg, nil, zerolog.Nop()); err != nil {
		t.Fatalf("Build() with valid weights error = %v", err)
	}

	invalid := filepath.Join(dir, "negative.yaml")
	if err := os.WriteFile(invalid, []byte("pool: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Matching.ScoringWeightsFile = invalid
	if _, err := Build(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for negative weights")
	}

	cfg.Matching.ScoringWeightsFile = filepath.Join(dir, "missing.yaml")
	if _, err := Build(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for a missing weights file")
	}
}
