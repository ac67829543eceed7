package domain

import (
	"testing"
	"time"
)

func TestComputeFingerprintWithSourceID(t *testing.T) {
	a := Listing{Source: "leboncoin", SourceListingID: "2551234567", URL: "https://x/1"}
	b := Listing{Source: "leboncoin", SourceListingID: "2551234567", URL: "https://x/other"}
	if a.ComputeFingerprint() != b.ComputeFingerprint() {
		t.Error("same (source, id) must hash identically regardless of URL")
	}

	c := Listing{Source: "lacentrale", SourceListingID: "2551234567"}
	if a.ComputeFingerprint() == c.ComputeFingerprint() {
		t.Error("same id on different sources must not collide")
	}

	if len(a.ComputeFingerprint()) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a.ComputeFingerprint()))
	}
}

func TestComputeFingerprintFallback(t *testing.T) {
	a := Listing{
		Source:       "paruvendu",
		CanonicalURL: "https://paruvendu.fr/ad/9",
		Make:         "Peugeot", Model: "207", Year: 2009,
	}
	b := a
	b.Make = "PEUGEOT" // normalization makes identity case-insensitive
	if a.ComputeFingerprint() != b.ComputeFingerprint() {
		t.Error("case difference in make changed the fallback fingerprint")
	}

	c := a
	c.Year = 2010
	if a.ComputeFingerprint() == c.ComputeFingerprint() {
		t.Error("different year must change the fallback fingerprint")
	}
}

func TestComputeSoftFingerprintBuckets(t *testing.T) {
	base := Listing{Make: "Renault", Model: "Clio", Year: 2010, Mileage: 125000, Department: "93"}

	sameBucket := base
	sameBucket.Mileage = 149000 // same 50k bucket
	if base.ComputeSoftFingerprint() != sameBucket.ComputeSoftFingerprint() {
		t.Error("mileage within the same 50k bucket changed the soft fingerprint")
	}

	otherBucket := base
	otherBucket.Mileage = 155000
	if base.ComputeSoftFingerprint() == otherBucket.ComputeSoftFingerprint() {
		t.Error("mileage in a different bucket must change the soft fingerprint")
	}

	otherDept := base
	otherDept.Department = "75"
	if base.ComputeSoftFingerprint() == otherDept.ComputeSoftFingerprint() {
		t.Error("different department must change the soft fingerprint")
	}

	if len(base.ComputeSoftFingerprint()) != 16 {
		t.Errorf("soft fingerprint length = %d, want 16", len(base.ComputeSoftFingerprint()))
	}
}

func TestComputeSoftFingerprintNeedsIdentity(t *testing.T) {
	// Different cars, same year, same 50k bucket, same department. The model
	// must keep them apart.
	peugeot := Listing{Make: "Peugeot", Model: "207", Year: 2009, Mileage: 150000, Department: "93"}
	clio := Listing{Make: "Renault", Model: "Clio", Year: 2009, Mileage: 150000, Department: "93"}
	if peugeot.ComputeSoftFingerprint() == clio.ComputeSoftFingerprint() {
		t.Error("different models collided on (year, bucket, department)")
	}

	// Without any identity the hash would collapse to (year, bucket,
	// department) and collide across unrelated vehicles; it must be empty.
	anon := Listing{Year: 2009, Mileage: 150000, Department: "93"}
	if fp := anon.ComputeSoftFingerprint(); fp != "" {
		t.Errorf("soft fingerprint without make/model = %q, want empty", fp)
	}

	onlyMake := Listing{Make: "Peugeot", Year: 2009, Mileage: 150000, Department: "93"}
	if onlyMake.ComputeSoftFingerprint() == "" {
		t.Error("make alone is identity enough for a soft fingerprint")
	}
}

func TestFuelFromString(t *testing.T) {
	tests := []struct {
		in       string
		expected Fuel
	}{
		{"Diesel", FuelDiesel},
		{"1.5 dCi", FuelDiesel},
		{"Essence", FuelPetrol},
		{"Électrique", FuelElectric},
		{"hybride", FuelHybrid},
		{"GPL", FuelLPG},
		{"", FuelUnknown},
		{"n/a", FuelUnknown},
	}
	for _, tt := range tests {
		if got := FuelFromString(tt.in); got != tt.expected {
			t.Errorf("FuelFromString(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestMarkNotified(t *testing.T) {
	var l Listing
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.MarkNotified([]string{"discord"}, at)

	if !l.Notified || l.NotifiedAt == nil || !l.NotifiedAt.Equal(at) {
		t.Error("MarkNotified did not set notified state")
	}
	if !l.UpdatedAt.Equal(at) {
		t.Error("MarkNotified did not advance updated_at")
	}
}
