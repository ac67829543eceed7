package scan

import (
	"testing"
	"time"

	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/scrape"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"150 000 km", 150000},
		{"2 500 €", 2500},
		{"2011", 2011},
		{"1.234", 1234},
		{"", 0},
		{"prix sur demande", 0},
	}
	for _, tt := range tests {
		if got := parseNumber(tt.in); got != tt.want {
			t.Errorf("parseNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSellerTypeFromRaw(t *testing.T) {
	tests := []struct {
		in   string
		want domain.SellerType
	}{
		{"particulier", domain.SellerPrivate},
		{"Particulier", domain.SellerPrivate},
		{"pro", domain.SellerDealer},
		{"SIREN 123456789", domain.SellerDealer},
		{"Garage Dupont", domain.SellerDealer},
		{"boutique", domain.SellerDealer},
		{"", domain.SellerUnknown},
	}
	for _, tt := range tests {
		if got := sellerTypeFromRaw(tt.in); got != tt.want {
			t.Errorf("sellerTypeFromRaw(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCandidate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-2 * time.Hour)

	c := scrape.Candidate{
		Source:          "leboncoin",
		SourceListingID: "123",
		URL:             "https://www.leboncoin.fr/ad/123.htm?utm_source=x",
		Title:           "  Peugeot 207 1.4 HDI  ",
		PriceRaw:        "1 800 €",
		MileageRaw:      "150 000 km",
		YearRaw:         "2009",
		PostalCode:      "93100",
		SellerTypeRaw:   "particulier",
		PublishedAtRaw:  published.Format(time.RFC3339),
		ThumbnailURL:    "https://img/thumb.jpg",
		FuelRaw:         "diesel",
	}

	l, err := normalizeCandidate(c, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if l.Price != 1800 || l.Mileage != 150000 || l.Year != 2009 {
		t.Errorf("numeric fields: price=%d km=%d year=%d", l.Price, l.Mileage, l.Year)
	}
	if l.Title != "Peugeot 207 1.4 HDI" {
		t.Errorf("title not trimmed: %q", l.Title)
	}
	if l.Department != "93" {
		t.Errorf("department = %q, want 93", l.Department)
	}
	if l.SellerType != domain.SellerPrivate || l.Fuel != domain.FuelDiesel {
		t.Errorf("seller=%s fuel=%s", l.SellerType, l.Fuel)
	}
	if l.CanonicalURL == l.URL {
		t.Error("tracking parameters not stripped from canonical url")
	}
	if l.PublishedAt == nil || !l.PublishedAt.Equal(published) {
		t.Errorf("published_at = %v, want %v", l.PublishedAt, published)
	}
	if len(l.ImageURLs) != 1 {
		t.Error("thumbnail not carried as image")
	}
	if len(l.Fingerprint) != 32 {
		t.Errorf("fingerprint length %d, want 32", len(l.Fingerprint))
	}
	// Cards carry no make/model; the soft fingerprint stays empty until the
	// matched target supplies the vehicle identity.
	if l.SoftFingerprint != "" {
		t.Errorf("soft fingerprint = %q, want empty without make/model", l.SoftFingerprint)
	}
	if l.Status != domain.StatusNew {
		t.Errorf("status = %s, want new", l.Status)
	}
}

func TestNormalizeCandidateNoIdentity(t *testing.T) {
	_, err := normalizeCandidate(scrape.Candidate{Source: "src", Title: "something"}, time.Now())
	if err == nil {
		t.Fatal("candidate with no url and no id must be rejected")
	}
}

func TestNormalizeCandidateBogusYear(t *testing.T) {
	now := time.Now().UTC()
	c := scrape.Candidate{Source: "src", SourceListingID: "1", YearRaw: "31"}
	l, err := normalizeCandidate(c, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if l.Year != 0 {
		t.Errorf("year = %d, want 0 for out-of-range input", l.Year)
	}
}

func TestApplyDetailRecomputesSoftFingerprint(t *testing.T) {
	now := time.Now().UTC()
	c := scrape.Candidate{
		Source:          "src",
		SourceListingID: "1",
		URL:             "https://src/1",
		Title:           "Peugeot 207",
		Make:            "Peugeot",
		Model:           "207",
		MileageRaw:      "150 000",
	}
	l, _ := normalizeCandidate(c, now)
	before := l.SoftFingerprint
	if before == "" {
		t.Fatal("soft fingerprint empty despite make/model")
	}

	applyDetail(&l, scrape.Detail{
		Description: "CT ok, entretien suivi",
		FuelRaw:     "diesel",
		GearboxRaw:  "manuelle",
		PowerRaw:    "70 ch",
		ImageURLs:   []string{"a", "b"},
	})

	if l.Description == "" || l.Gearbox != "manuelle" || l.PowerHP != 70 {
		t.Errorf("detail fields not merged: %+v", l)
	}
	if l.Fuel != domain.FuelDiesel {
		t.Errorf("fuel = %s, want diesel", l.Fuel)
	}
	if len(l.ImageURLs) != 2 {
		t.Error("detail images must replace the thumbnail")
	}
	if l.SoftFingerprint != before {
		// Nothing identity-relevant changed here, so it must be stable.
		t.Error("soft fingerprint changed although identity fields did not")
	}
}
