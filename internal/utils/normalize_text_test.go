package utils

import (
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "accents and case",
			input:    "Évry-Courcouronnes",
			expected: "evry courcouronnes",
		},
		{
			name:     "street with apostrophe",
			input:    "Rue de l'Église",
			expected: "rue de l eglise",
		},
		{
			name:     "extra spaces",
			input:    "  15   Rue de la Paix ,  Paris ",
			expected: "15 rue de la paix paris",
		},
		{
			name:     "already normalized",
			input:    "bordeaux",
			expected: "bordeaux",
		},
		{
			name:     "empty",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeText(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		needle   string
		expected bool
	}{
		{"city in formatted address", "15 Rue de la Paix, 75002 Paris, France", "paris", true},
		{"accented needle", "Place de l'Eglise, 33000 Bordeaux", "Église", true},
		{"partial word is not a match", "Parisot, France", "Paris", false},
		{"empty needle", "Paris", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsFold(tt.haystack, tt.needle); got != tt.expected {
				t.Errorf("ContainsFold(%q, %q) = %v, want %v", tt.haystack, tt.needle, got, tt.expected)
			}
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", " Bordeaux ", "Paris"); got != "Bordeaux" {
		t.Errorf("FirstNonEmpty() = %q, want %q", got, "Bordeaux")
	}
	if got := FirstNonEmpty("", " "); got != "" {
		t.Errorf("FirstNonEmpty() = %q, want empty", got)
	}
}
