package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

type SellerType string

const (
	SellerPrivate SellerType = "private"
	SellerDealer  SellerType = "dealer"
	SellerUnknown SellerType = "unknown"
)

type Fuel string

const (
	FuelDiesel   Fuel = "diesel"
	FuelPetrol   Fuel = "petrol"
	FuelHybrid   Fuel = "hybrid"
	FuelElectric Fuel = "electric"
	FuelLPG      Fuel = "lpg"
	FuelUnknown  Fuel = "unknown"
)

// FuelFromString maps free-text fuel labels (French and English) to a Fuel.
func FuelFromString(s string) Fuel {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return FuelUnknown
	}
	switch {
	case containsAny(v, "diesel", "gazole", "hdi", "dci", "tdi", "cdti", "d-4d"):
		return FuelDiesel
	case containsAny(v, "essence", "petrol", "sp95", "sp98", "vti", "tce", "tfsi"):
		return FuelPetrol
	case containsAny(v, "hybride", "hybrid"):
		return FuelHybrid
	case containsAny(v, "electrique", "électrique", "electric"):
		return FuelElectric
	case containsAny(v, "gpl", "lpg"):
		return FuelLPG
	}
	return FuelUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusExpired   Status = "expired"
	StatusIgnored   Status = "ignored"
	StatusExcluded  Status = "excluded"
)

// ScoreBreakdown is the per-axis explanation of a score. It is stored next to
// the total so any listing can be audited or replayed against a new config.
type ScoreBreakdown struct {
	PriceScore      int    `json:"price_score"`
	PriceDetail     string `json:"price_detail,omitempty"`
	MileageScore    int    `json:"mileage_score"`
	MileageDetail   string `json:"mileage_detail,omitempty"`
	FreshnessScore  int    `json:"freshness_score"`
	FreshnessDetail string `json:"freshness_detail,omitempty"`
	KeywordScore    int    `json:"keyword_score"`
	KeywordDetail   string `json:"keyword_detail,omitempty"`
	BonusScore      int    `json:"bonus_score"`
	BonusDetail     string `json:"bonus_detail,omitempty"`
	RiskPenalty     int    `json:"risk_penalty"`
	RiskDetail      string `json:"risk_detail,omitempty"`
	MarginBonus     int    `json:"margin_bonus"`
	MarginMin       int    `json:"margin_min"`
	MarginMax       int    `json:"margin_max"`
	RepairCost      int    `json:"repair_cost"`
	Total           int    `json:"total"`
}

// Listing is one marketplace offer. Zero-valued numeric fields mean the
// source did not publish that attribute.
type Listing struct {
	ID              int64          `json:"id"`
	Source          string         `json:"source"`
	SourceListingID string         `json:"source_listing_id,omitempty"`
	URL             string         `json:"url"`
	CanonicalURL    string         `json:"canonical_url"`
	Fingerprint     string         `json:"fingerprint"`
	SoftFingerprint string         `json:"soft_fingerprint"`
	Make            string         `json:"make"`
	Model           string         `json:"model"`
	Version         string         `json:"version,omitempty"`
	Fuel            Fuel           `json:"fuel"`
	Gearbox         string         `json:"gearbox,omitempty"`
	PowerHP         int            `json:"power_hp,omitempty"`
	Year            int            `json:"year,omitempty"`
	Mileage         int            `json:"mileage,omitempty"`
	Price           int            `json:"price,omitempty"`
	City            string         `json:"city,omitempty"`
	PostalCode      string         `json:"postal_code,omitempty"`
	Department      string         `json:"department,omitempty"`
	SellerType      SellerType     `json:"seller_type"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	ImageURLs       []string       `json:"image_urls,omitempty"`
	OpportunityIDs  []string       `json:"opportunity_keywords,omitempty"`
	RiskIDs         []string       `json:"risk_keywords,omitempty"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	ScrapedAt       time.Time      `json:"scraped_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Score           int            `json:"score"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	AlertLevel      AlertLevel     `json:"alert_level"`
	Status          Status         `json:"status"`
	Notified        bool           `json:"notified"`
	NotifiedAt      *time.Time     `json:"notified_at,omitempty"`
	NotifyChannels  []string       `json:"notify_channels,omitempty"`
}

// ComputeFingerprint returns the exact identity hash. (source, source-local id)
// is authoritative when the id is present; otherwise the hash covers the
// canonical URL plus normalized identity fields so the same offer hashes the
// same across re-scrapes.
func (l *Listing) ComputeFingerprint() string {
	var data string
	if l.SourceListingID != "" {
		data = l.Source + ":" + l.SourceListingID
	} else {
		data = strings.Join([]string{
			l.Source,
			l.CanonicalURL,
			NormalizeText(l.Make),
			NormalizeText(l.Model),
			strconv.Itoa(l.Year),
		}, "|")
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:32]
}

// ComputeSoftFingerprint returns the near-duplicate hash. It deliberately
// ignores price and exact mileage so a republished ad with small edits still
// collides: make + model + year + mileage bucket + department. Without a make
// or model the hash would collide across unrelated vehicles that merely share
// year, bucket and department, so it returns "" and near-dup checks no-op.
func (l *Listing) ComputeSoftFingerprint() string {
	mk := NormalizeText(l.Make)
	md := NormalizeText(l.Model)
	if mk == "" && md == "" {
		return ""
	}
	kmBucket := ""
	if l.Mileage > 0 {
		kmBucket = strconv.Itoa((l.Mileage / 50000) * 50000)
	}
	data := strings.Join([]string{
		mk,
		md,
		strconv.Itoa(l.Year),
		kmBucket,
		l.Department,
	}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:16]
}

// SearchText is the haystack for keyword matching.
func (l *Listing) SearchText() string {
	return NormalizeText(l.Title + " " + l.Description + " " + l.Version)
}

func (l *Listing) MarkNotified(channels []string, at time.Time) {
	l.Notified = true
	l.NotifiedAt = &at
	l.NotifyChannels = channels
	if at.After(l.UpdatedAt) {
		l.UpdatedAt = at
	}
}
