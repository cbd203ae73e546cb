package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("MATCH_WORKERS", "")
	t.Setenv("DEFAULT_COUNTRY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Matching.DefaultCountry != "FR" {
		t.Errorf("DefaultCountry = %q, want FR", cfg.Matching.DefaultCountry)
	}
	if cfg.Matching.MatchWorkers != 8 {
		t.Errorf("MatchWorkers = %d, want 8", cfg.Matching.MatchWorkers)
	}
	if cfg.Matching.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Matching.RequestTimeout)
	}
	if cfg.Cadastre.BaseURL == "" {
		t.Error("Cadastre.BaseURL should have a default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("MATCH_WORKERS", "3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("DEFAULT_COUNTRY", "BE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Matching.MatchWorkers != 3 {
		t.Errorf("MatchWorkers = %d, want 3", cfg.Matching.MatchWorkers)
	}
	if cfg.Matching.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Matching.RequestTimeout)
	}
	if cfg.Matching.DefaultCountry != "BE" {
		t.Errorf("DefaultCountry = %q, want BE", cfg.Matching.DefaultCountry)
	}
}

func TestLoadRejectsInvalidCountry(t *testing.T) {
	t.Setenv("DEFAULT_COUNTRY", "FRA")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for three-letter country code")
	}
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() expected error without JWT secret")
	}
	cfg.Auth.AccessSecret = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() error = %v", err)
	}
}
