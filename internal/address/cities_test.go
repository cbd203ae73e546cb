package address

import "testing"

func TestDetectCity(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"15 Rue de la Paix, 75002 Paris", "Paris"},
		{"13100 Aix-en-Provence", "Aix-en-Provence"},
		{"Agence du Centre\nBORDEAUX", "BORDEAUX"},
		{"12 rue Sainte-Catherine", ""},
		{"Maison à vendre", ""},
		{"VENDU\nOrpi", ""},
		{"Vue sur mer, La Rochelle", "La Rochelle"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DetectCity(tt.text); got != tt.want {
			t.Errorf("DetectCity(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestHasPlausibleCity(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"15 rue de la Paix, 75002 Paris", true},
		{"12 avenue Victor Hugo", false},
		{"12 avenue Victor Hugo, Boulogne-Billancourt", true},
		{"3 place du Marché, Lyon", true},
		{"rue de la Paix", false},
	}
	for _, tt := range tests {
		if got := HasPlausibleCity(tt.text); got != tt.want {
			t.Errorf("HasPlausibleCity(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLexicon(t *testing.T) {
	if !HasStreetKeyword("12 Bd. Haussmann") {
		t.Error("expected street keyword in abbreviated boulevard")
	}
	if !HasStreetKeyword("Cité Jardin") {
		t.Error("expected street keyword for accented cité")
	}
	if HasStreetKeyword("Ruelle fleurie") {
		t.Error("ruelle is not rue")
	}
	if got := StreetKeyword("14 ALLÉE des Pins"); got != "allee" {
		t.Errorf("StreetKeyword = %q, want allee", got)
	}
	if got := PostalCode("tel 0556000000 33000 Bordeaux"); got != "33000" {
		t.Errorf("PostalCode = %q, want 33000", got)
	}
	if !IsStopword("Rue") || IsStopword("Bordeaux") {
		t.Error("unexpected stopword classification")
	}
	if CountryName("fr") != "France" || CountryName("") != "France" || CountryName("BE") != "Belgique" {
		t.Error("unexpected country names")
	}
}
