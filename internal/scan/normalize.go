package scan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/scrape"
)

// normalizeCandidate turns a raw scrape record into a listing with parsed
// numeric fields, a canonical URL and both fingerprints. A candidate with
// neither a URL nor a source-local id has no identity and is rejected.
func normalizeCandidate(c scrape.Candidate, now time.Time) (domain.Listing, error) {
	if c.URL == "" && c.SourceListingID == "" {
		return domain.Listing{}, fmt.Errorf("candidate from %s has no url and no id", c.Source)
	}

	l := domain.Listing{
		Source:          c.Source,
		SourceListingID: c.SourceListingID,
		URL:             c.URL,
		CanonicalURL:    domain.CanonicalizeURL(c.URL),
		Make:            strings.TrimSpace(c.Make),
		Model:           strings.TrimSpace(c.Model),
		Version:         strings.TrimSpace(c.Version),
		Fuel:            domain.FuelFromString(c.FuelRaw),
		City:            strings.TrimSpace(c.City),
		PostalCode:      strings.TrimSpace(c.PostalCode),
		SellerType:      sellerTypeFromRaw(c.SellerTypeRaw),
		Title:           strings.TrimSpace(c.Title),
		ScrapedAt:       now,
		Status:          domain.StatusNew,
		AlertLevel:      domain.AlertArchive,
	}

	l.Price = parseNumber(c.PriceRaw)
	l.Mileage = parseNumber(c.MileageRaw)
	if y := parseNumber(c.YearRaw); y >= 1950 && y <= 2100 {
		l.Year = y
	}
	l.Department = domain.DepartmentFromPostalCode(l.PostalCode)
	if c.ThumbnailURL != "" {
		l.ImageURLs = []string{c.ThumbnailURL}
	}
	if c.PublishedAtRaw != "" {
		if t, err := time.Parse(time.RFC3339, c.PublishedAtRaw); err == nil {
			t = t.UTC()
			l.PublishedAt = &t
		}
	}

	l.Fingerprint = l.ComputeFingerprint()
	l.SoftFingerprint = l.ComputeSoftFingerprint()
	return l, nil
}

// applyDetail merges the second-pass payload into the listing. Detail data
// wins over card data where both exist; the soft fingerprint is recomputed
// because mileage or department may have been refined.
func applyDetail(l *domain.Listing, d scrape.Detail) {
	if d.Description != "" {
		l.Description = d.Description
	}
	if d.SellerTypeRaw != "" {
		l.SellerType = sellerTypeFromRaw(d.SellerTypeRaw)
	}
	if f := domain.FuelFromString(d.FuelRaw); f != domain.FuelUnknown {
		l.Fuel = f
	}
	if d.GearboxRaw != "" {
		l.Gearbox = strings.TrimSpace(d.GearboxRaw)
	}
	if hp := parseNumber(d.PowerRaw); hp > 0 {
		l.PowerHP = hp
	}
	if len(d.ImageURLs) > 0 {
		l.ImageURLs = d.ImageURLs
	}
	l.SoftFingerprint = l.ComputeSoftFingerprint()
}

// parseNumber extracts the integer from strings like "150 000 km",
// "2 500 €" or "2011". Returns 0 when no digits are present.
func parseNumber(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

func sellerTypeFromRaw(raw string) domain.SellerType {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "":
		return domain.SellerUnknown
	case strings.Contains(v, "pro"), strings.Contains(v, "siren"),
		strings.Contains(v, "boutique"), strings.Contains(v, "garage"):
		return domain.SellerDealer
	default:
		return domain.SellerPrivate
	}
}
