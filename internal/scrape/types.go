// Package scrape defines the plugin boundary: the core never knows how a
// source obtains its records, only that a Fetcher yields raw candidates for
// a search and may fail.
package scrape

import "context"

// Criteria is the search the orchestrator asks a plugin to run. Plugins are
// free to ignore fields their site cannot filter on.
type Criteria struct {
	Query       string
	MaxPrice    int
	Departments []string
}

// Candidate is one raw listing record as the plugin saw it. Numeric fields
// stay strings here; normalization parses them and may fail per candidate.
type Candidate struct {
	Source          string
	SourceListingID string
	URL             string
	Title           string
	PriceRaw        string
	MileageRaw      string
	YearRaw         string
	City            string
	PostalCode      string
	SellerTypeRaw   string
	PublishedAtRaw  string // RFC 3339 when the site exposes it
	ThumbnailURL    string
	Make            string
	Model           string
	Version         string
	FuelRaw         string
}

// Detail is the expensive second-pass payload for one listing page.
type Detail struct {
	Description   string
	SellerTypeRaw string
	FuelRaw       string
	GearboxRaw    string
	PowerRaw      string
	ImageURLs     []string
}

type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, c Criteria) ([]Candidate, error)
}

// DetailFetcher is optional; sources without one only get the cheap pass.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (Detail, error)
}
