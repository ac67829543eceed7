package domain

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"lowercase", "Peugeot 207", "peugeot 207"},
		{"accents", "Contrôle Technique à refaire", "controle technique a refaire"},
		{"punctuation", "ct: ok / distribution-faite!", "ct ok distribution faite"},
		{"collapse spaces", "  fume   noir  ", "fume noir"},
		{"empty", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			"strips tracking",
			"https://www.leboncoin.fr/voitures/2551234567.htm?utm_source=alert&utm_campaign=x",
			"https://www.leboncoin.fr/voitures/2551234567.htm",
		},
		{
			"sorts remaining params",
			"https://example.com/ad?b=2&a=1",
			"https://example.com/ad?a=1&b=2",
		},
		{
			"lowercases host and drops fragment",
			"https://WWW.Leboncoin.FR/voitures/123.htm#photos",
			"https://www.leboncoin.fr/voitures/123.htm",
		},
		{
			"trims trailing slash",
			"https://example.com/ad/",
			"https://example.com/ad",
		},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalizeURL(tt.in); got != tt.expected {
				t.Errorf("CanonicalizeURL(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestCanonicalizeURLCollapsesVariants(t *testing.T) {
	a := CanonicalizeURL("https://www.leboncoin.fr/voitures/123.htm?utm_source=mail")
	b := CanonicalizeURL("https://WWW.leboncoin.fr/voitures/123.htm#top")
	if a != b {
		t.Errorf("variants of the same ad canonicalize differently: %q vs %q", a, b)
	}
}

func TestDepartmentFromPostalCode(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"75011", "75"},
		{"93200", "93"},
		{"97400", "974"},
		{"20090", "20"},
		{"7", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DepartmentFromPostalCode(tt.in); got != tt.expected {
			t.Errorf("DepartmentFromPostalCode(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
