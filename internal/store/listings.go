package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dealscan-engine/internal/domain"
)

const listingColumns = `
id, source, source_listing_id, url, canonical_url, fingerprint, soft_fingerprint,
make, model, version, fuel, gearbox, power_hp, year, mileage, price,
city, postal_code, department, seller_type, title, description,
image_urls, opportunity_keywords, risk_keywords,
published_at, scraped_at, created_at, updated_at,
score, breakdown, alert_level, status, notified, notified_at, notify_channels`

// SaveListing inserts the listing or, when the fingerprint already exists,
// updates the mutable columns in place. id, fingerprint and created_at are
// preserved on conflict. The listing's ID, CreatedAt and UpdatedAt are set
// from the stored row.
func (d *DB) SaveListing(ctx context.Context, l *domain.Listing) (isNew bool, err error) {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	breakdown, err := json.Marshal(l.Breakdown)
	if err != nil {
		return false, fmt.Errorf("marshal breakdown: %w", err)
	}

	var priorID int64
	err = d.Pool.QueryRowContext(ctx,
		`SELECT id FROM listings WHERE fingerprint = ?;`, l.Fingerprint).Scan(&priorID)
	switch {
	case err == sql.ErrNoRows:
		isNew = true
	case err != nil:
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}

	row := d.Pool.QueryRowContext(ctx, `
INSERT INTO listings (
  source, source_listing_id, url, canonical_url, fingerprint, soft_fingerprint,
  make, model, version, fuel, gearbox, power_hp, year, mileage, price,
  city, postal_code, department, seller_type, title, description,
  image_urls, opportunity_keywords, risk_keywords,
  published_at, scraped_at, created_at, updated_at,
  score, breakdown, alert_level, status, notified, notified_at, notify_channels
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(fingerprint) DO UPDATE SET
  url = excluded.url,
  canonical_url = excluded.canonical_url,
  soft_fingerprint = excluded.soft_fingerprint,
  make = excluded.make,
  model = excluded.model,
  version = excluded.version,
  fuel = excluded.fuel,
  gearbox = excluded.gearbox,
  power_hp = excluded.power_hp,
  year = excluded.year,
  mileage = excluded.mileage,
  price = excluded.price,
  city = excluded.city,
  postal_code = excluded.postal_code,
  department = excluded.department,
  seller_type = excluded.seller_type,
  title = excluded.title,
  description = excluded.description,
  image_urls = excluded.image_urls,
  opportunity_keywords = excluded.opportunity_keywords,
  risk_keywords = excluded.risk_keywords,
  published_at = excluded.published_at,
  scraped_at = excluded.scraped_at,
  updated_at = excluded.updated_at,
  score = excluded.score,
  breakdown = excluded.breakdown,
  alert_level = excluded.alert_level
RETURNING id, created_at, notified, notified_at, notify_channels;`,
		l.Source, l.SourceListingID, l.URL, l.CanonicalURL, l.Fingerprint, l.SoftFingerprint,
		l.Make, l.Model, l.Version, string(l.Fuel), l.Gearbox, l.PowerHP, l.Year, l.Mileage, l.Price,
		l.City, l.PostalCode, l.Department, string(l.SellerType), l.Title, l.Description,
		jsonList(l.ImageURLs), jsonList(l.OpportunityIDs), jsonList(l.RiskIDs),
		timePtrText(l.PublishedAt), timeText(l.ScrapedAt), timeText(l.CreatedAt), timeText(l.UpdatedAt),
		l.Score, string(breakdown), string(l.AlertLevel), string(l.Status),
		boolInt(l.Notified), timePtrText(l.NotifiedAt), jsonList(l.NotifyChannels),
	)

	var createdAt, notifiedAt, channels string
	var notified int
	if err := row.Scan(&l.ID, &createdAt, &notified, &notifiedAt, &channels); err != nil {
		return false, fmt.Errorf("save listing: %w", err)
	}

	// Notification state is owned by the stored row, not the fresh scrape.
	l.CreatedAt = parseTime(createdAt)
	l.Notified = notified != 0
	l.NotifiedAt = parseTimePtr(notifiedAt)
	l.NotifyChannels = parseList(channels)
	return isNew, nil
}

func (d *DB) ExistsFingerprint(ctx context.Context, fp string) (bool, error) {
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE fingerprint = ? LIMIT 1;`, fp).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists fingerprint: %w", err)
	}
	return true, nil
}

func (d *DB) ExistsSoftFingerprint(ctx context.Context, sfp string) (bool, error) {
	if sfp == "" {
		return false, nil
	}
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE soft_fingerprint = ? LIMIT 1;`, sfp).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists soft fingerprint: %w", err)
	}
	return true, nil
}

func (d *DB) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?;`, id)
	return scanListing(row)
}

func (d *DB) GetByFingerprint(ctx context.Context, fp string) (*domain.Listing, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE fingerprint = ?;`, fp)
	return scanListing(row)
}

// ListingFilter narrows ListListings. Zero values mean "no filter".
type ListingFilter struct {
	Source     string
	AlertLevel string
	Status     string
	MinScore   int
	Search     string
	Sort       string // score, price, mileage, created_at, updated_at
	Desc       bool
	Limit      int
	Offset     int
}

var listingSortColumns = map[string]string{
	"score":      "score",
	"price":      "price",
	"mileage":    "mileage",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (d *DB) ListListings(ctx context.Context, f ListingFilter) ([]*domain.Listing, error) {
	var where []string
	var args []any
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.AlertLevel != "" {
		where = append(where, "alert_level = ?")
		args = append(args, f.AlertLevel)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, f.MinScore)
	}
	if f.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ? OR model LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat)
	}

	q := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	// whitelist the sort column; never interpolate user input
	col, ok := listingSortColumns[f.Sort]
	if !ok {
		col = "score"
		f.Desc = true
	}
	q += " ORDER BY " + col
	if f.Desc {
		q += " DESC"
	}
	q += ", id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := d.Pool.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Fingerprints returns every stored (fingerprint, soft_fingerprint) pair,
// used to warm the dedup index at startup.
func (d *DB) Fingerprints(ctx context.Context) (exact, soft []string, err error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT fingerprint, soft_fingerprint FROM listings;`)
	if err != nil {
		return nil, nil, fmt.Errorf("load fingerprints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fp, sfp string
		if err := rows.Scan(&fp, &sfp); err != nil {
			return nil, nil, err
		}
		exact = append(exact, fp)
		if sfp != "" {
			soft = append(soft, sfp)
		}
	}
	return exact, soft, rows.Err()
}

func (d *DB) SetListingStatus(ctx context.Context, id int64, status domain.Status) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?;`,
		string(status), timeText(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (d *DB) MarkNotified(ctx context.Context, id int64, channels []string, at time.Time) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE listings SET notified = 1, notified_at = ?, notify_channels = ?, updated_at = ?
WHERE id = ?;`,
		timeText(at), jsonList(channels), timeText(at.UTC()), id)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var l domain.Listing
	var fuel, seller, alertLevel, status string
	var images, opps, risks, channels, breakdown string
	var published, scraped, created, updated, notifiedAt string
	var notified int

	err := row.Scan(
		&l.ID, &l.Source, &l.SourceListingID, &l.URL, &l.CanonicalURL, &l.Fingerprint, &l.SoftFingerprint,
		&l.Make, &l.Model, &l.Version, &fuel, &l.Gearbox, &l.PowerHP, &l.Year, &l.Mileage, &l.Price,
		&l.City, &l.PostalCode, &l.Department, &seller, &l.Title, &l.Description,
		&images, &opps, &risks,
		&published, &scraped, &created, &updated,
		&l.Score, &breakdown, &alertLevel, &status, &notified, &notifiedAt, &channels,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	l.Fuel = domain.Fuel(fuel)
	l.SellerType = domain.SellerType(seller)
	l.AlertLevel = domain.AlertLevel(alertLevel)
	l.Status = domain.Status(status)
	l.ImageURLs = parseList(images)
	l.OpportunityIDs = parseList(opps)
	l.RiskIDs = parseList(risks)
	l.NotifyChannels = parseList(channels)
	l.PublishedAt = parseTimePtr(published)
	l.ScrapedAt = parseTime(scraped)
	l.CreatedAt = parseTime(created)
	l.UpdatedAt = parseTime(updated)
	l.Notified = notified != 0
	l.NotifiedAt = parseTimePtr(notifiedAt)
	if breakdown != "" {
		if err := json.Unmarshal([]byte(breakdown), &l.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
	}
	return &l, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func timePtrText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeText(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
