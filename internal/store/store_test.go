package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/health"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleListing() *domain.Listing {
	published := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	l := &domain.Listing{
		Source:          "leboncoin",
		SourceListingID: "2551234567",
		URL:             "https://www.leboncoin.fr/voitures/2551234567.htm",
		CanonicalURL:    "https://www.leboncoin.fr/voitures/2551234567.htm",
		Make:            "Peugeot",
		Model:           "207",
		Fuel:            domain.FuelDiesel,
		Year:            2009,
		Mileage:         150000,
		Price:           1800,
		City:            "Montreuil",
		PostalCode:      "93100",
		Department:      "93",
		SellerType:      domain.SellerPrivate,
		Title:           "Peugeot 207 1.4 HDI",
		ImageURLs:       []string{"https://img/1.jpg", "https://img/2.jpg"},
		OpportunityIDs:  []string{"ct_ok"},
		RiskIDs:         []string{"embrayage"},
		PublishedAt:     &published,
		ScrapedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Score:           82,
		Breakdown:       domain.ScoreBreakdown{PriceScore: 33, MileageScore: 25, Total: 82},
		AlertLevel:      domain.AlertUrgent,
		Status:          domain.StatusNew,
	}
	l.Fingerprint = l.ComputeFingerprint()
	l.SoftFingerprint = l.ComputeSoftFingerprint()
	return l
}

func TestSaveListingRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := sampleListing()
	isNew, err := db.SaveListing(ctx, l)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !isNew {
		t.Error("first save not reported as new")
	}
	if l.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := db.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Fingerprint != l.Fingerprint || got.SoftFingerprint != l.SoftFingerprint {
		t.Error("fingerprints did not survive the round trip")
	}
	if got.AlertLevel != domain.AlertUrgent || got.Score != 82 {
		t.Errorf("score/level = %d/%s, want 82/urgent", got.Score, got.AlertLevel)
	}
	if got.Breakdown.PriceScore != 33 || got.Breakdown.Total != 82 {
		t.Errorf("breakdown lost: %+v", got.Breakdown)
	}
	if len(got.ImageURLs) != 2 || len(got.OpportunityIDs) != 1 || len(got.RiskIDs) != 1 {
		t.Error("JSON list columns lost data")
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(*l.PublishedAt) {
		t.Error("published_at did not survive the round trip")
	}
	if got.Fuel != domain.FuelDiesel || got.SellerType != domain.SellerPrivate {
		t.Error("enum columns lost data")
	}
}

func TestSaveListingUpsertPreservesIdentity(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := sampleListing()
	db.SaveListing(ctx, l)
	firstID := l.ID
	firstCreated := l.CreatedAt

	// Mark notified, then re-scrape with a new price.
	db.MarkNotified(ctx, firstID, []string{"discord"}, time.Now().UTC())

	update := sampleListing()
	update.Price = 1600
	update.Score = 90
	isNew, err := db.SaveListing(ctx, update)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if isNew {
		t.Error("update reported as new")
	}
	if update.ID != firstID {
		t.Errorf("id changed on upsert: %d -> %d", firstID, update.ID)
	}
	if !update.CreatedAt.Equal(firstCreated) {
		t.Error("created_at changed on upsert")
	}
	if !update.Notified {
		t.Error("notification state lost on upsert")
	}

	got, _ := db.GetByFingerprint(ctx, update.Fingerprint)
	if got.Price != 1600 || got.Score != 90 {
		t.Errorf("mutable columns not updated: price=%d score=%d", got.Price, got.Score)
	}
}

func TestExistsFingerprint(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := sampleListing()
	db.SaveListing(ctx, l)

	if ok, _ := db.ExistsFingerprint(ctx, l.Fingerprint); !ok {
		t.Error("saved fingerprint not found")
	}
	if ok, _ := db.ExistsFingerprint(ctx, "missing"); ok {
		t.Error("missing fingerprint reported as present")
	}
	if ok, _ := db.ExistsSoftFingerprint(ctx, l.SoftFingerprint); !ok {
		t.Error("saved soft fingerprint not found")
	}
	if ok, _ := db.ExistsSoftFingerprint(ctx, ""); ok {
		t.Error("empty soft fingerprint reported as present")
	}
}

func TestListListingsFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a := sampleListing()
	db.SaveListing(ctx, a)

	b := sampleListing()
	b.SourceListingID = "999"
	b.Fingerprint = b.ComputeFingerprint()
	b.Score = 30
	b.AlertLevel = domain.AlertWatch
	db.SaveListing(ctx, b)

	urgent, err := db.ListListings(ctx, ListingFilter{AlertLevel: "urgent"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(urgent) != 1 || urgent[0].ID != a.ID {
		t.Errorf("alert_level filter returned %d rows", len(urgent))
	}

	highScore, _ := db.ListListings(ctx, ListingFilter{MinScore: 50})
	if len(highScore) != 1 {
		t.Errorf("min_score filter returned %d rows, want 1", len(highScore))
	}

	all, _ := db.ListListings(ctx, ListingFilter{Sort: "score", Desc: true})
	if len(all) != 2 || all[0].Score < all[1].Score {
		t.Error("score sort order wrong")
	}
}

func TestFingerprintsPreloadQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.SaveListing(ctx, sampleListing())

	exact, soft, err := db.Fingerprints(ctx)
	if err != nil {
		t.Fatalf("fingerprints: %v", err)
	}
	if len(exact) != 1 || len(soft) != 1 {
		t.Errorf("got %d exact, %d soft, want 1/1", len(exact), len(soft))
	}
}

func TestScanHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec := &domain.ScanRecord{Source: "leboncoin", StartedAt: time.Now().UTC()}
	if err := db.StartScan(ctx, rec); err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("scan id not assigned")
	}

	rec.Found, rec.New, rec.Updated, rec.Errors = 10, 3, 2, 1
	rec.Finish(domain.ScanSuccess, rec.StartedAt.Add(5*time.Second))
	if err := db.FinishScan(ctx, rec); err != nil {
		t.Fatalf("finish: %v", err)
	}

	recs, err := db.ListScans(ctx, "leboncoin", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	got := recs[0]
	if got.Status != domain.ScanSuccess || got.Found != 10 || got.New != 3 {
		t.Errorf("record lost data: %+v", got)
	}
	if got.DurationMS != 5000 {
		t.Errorf("duration_ms = %d, want 5000", got.DurationMS)
	}
}

func TestNotificationsAppendOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec := &domain.NotificationRecord{
		ListingID:   1,
		Fingerprint: "abc",
		Channel:     "discord",
		AlertLevel:  domain.AlertUrgent,
		Status:      domain.NotifyFailed,
		Error:       "status 500",
		SentAt:      time.Now().UTC(),
	}
	if err := db.RecordNotification(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, _ := db.ListNotifications(ctx, 1, 10)
	if len(recs) != 1 || recs[0].Status != domain.NotifyFailed || recs[0].Error != "status 500" {
		t.Errorf("notification audit lost data: %+v", recs)
	}
}

func TestSourceStateRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	in := []health.SourceState{{
		Name:        "leboncoin",
		State:       health.StateOpen,
		Failures:    4,
		NextRetryAt: time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		Backoff:     8 * time.Minute,
	}}
	if err := db.SaveSourceStates(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Upsert path.
	in[0].Failures = 5
	if err := db.SaveSourceStates(ctx, in); err != nil {
		t.Fatalf("resave: %v", err)
	}

	out, err := db.LoadSourceStates(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d states, want 1", len(out))
	}
	st := out[0]
	if st.State != health.StateOpen || st.Failures != 5 || st.Backoff != 8*time.Minute {
		t.Errorf("state lost data: %+v", st)
	}
	if !st.NextRetryAt.Equal(in[0].NextRetryAt) {
		t.Errorf("next_retry_at = %v, want %v", st.NextRetryAt, in[0].NextRetryAt)
	}
}

func TestSetListingStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := sampleListing()
	db.SaveListing(ctx, l)

	if err := db.SetListingStatus(ctx, l.ID, domain.StatusContacted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := db.GetListing(ctx, l.ID)
	if got.Status != domain.StatusContacted {
		t.Errorf("status = %s, want contacted", got.Status)
	}

	if err := db.SetListingStatus(ctx, 9999, domain.StatusIgnored); err == nil {
		t.Error("missing id did not error")
	}
}
