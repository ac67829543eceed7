// Package leboncoin scrapes leboncoin.fr search result pages. It is the
// reference plugin; the engine core only sees the scrape.Fetcher interface.
package leboncoin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"dealscan-engine/internal/scrape"
)

const SourceName = "leboncoin"

type Config struct {
	// SearchURL overrides the built search; useful for saved searches.
	SearchURL string
	UserAgent string
}

type Scraper struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	}
	return &Scraper{
		cfg: cfg,
		hc:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *Scraper) Name() string { return SourceName }

func (s *Scraper) Fetch(ctx context.Context, c scrape.Criteria) ([]scrape.Candidate, error) {
	searchURL := s.cfg.SearchURL
	if searchURL == "" {
		searchURL = buildSearchURL(c)
	}

	doc, err := s.getDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var out []scrape.Candidate
	doc.Find(`a[data-qa-id="aditem_container"]`).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := href
		if strings.HasPrefix(href, "/") {
			abs = "https://www.leboncoin.fr" + href
		}

		cand := scrape.Candidate{
			Source:          SourceName,
			SourceListingID: adIDFromURL(abs),
			URL:             abs,
			Title:           cleanText(card.Find(`[data-qa-id="aditem_title"]`).Text()),
			PriceRaw:        cleanText(card.Find(`[data-qa-id="aditem_price"]`).Text()),
			PublishedAtRaw:  card.Find("time").AttrOr("datetime", ""),
			ThumbnailURL:    card.Find("img").AttrOr("src", ""),
		}

		loc := cleanText(card.Find(`[data-qa-id="aditem_location"]`).Text())
		cand.City, cand.PostalCode = splitLocation(loc)

		// Cards expose year/mileage in the details line ("2004 · 150 000 km · Diesel").
		for _, part := range strings.Split(card.Find(`[data-qa-id="aditem_details"]`).Text(), "·") {
			part = cleanText(part)
			switch {
			case strings.HasSuffix(part, "km"):
				cand.MileageRaw = part
			case looksLikeYear(part):
				cand.YearRaw = part
			case part != "":
				if cand.FuelRaw == "" {
					cand.FuelRaw = part
				}
			}
		}

		if cand.Title != "" || cand.SourceListingID != "" {
			out = append(out, cand)
		}
	})

	return out, nil
}

// FetchDetail loads one listing page for the second pass.
func (s *Scraper) FetchDetail(ctx context.Context, adURL string) (scrape.Detail, error) {
	doc, err := s.getDocument(ctx, adURL)
	if err != nil {
		return scrape.Detail{}, err
	}

	d := scrape.Detail{
		Description:   cleanText(doc.Find(`[data-qa-id="adview_description_container"]`).Text()),
		SellerTypeRaw: cleanText(doc.Find(`[data-qa-id="adview_contact_container"] [data-qa-id="storebox_title"]`).Text()),
	}

	doc.Find(`[data-qa-id^="criteria_item_"]`).Each(func(_ int, crit *goquery.Selection) {
		key := crit.AttrOr("data-qa-id", "")
		val := cleanText(crit.Find("p").Last().Text())
		switch key {
		case "criteria_item_fuel":
			d.FuelRaw = val
		case "criteria_item_gearbox":
			d.GearboxRaw = val
		case "criteria_item_horsepower":
			d.PowerRaw = val
		}
	})

	doc.Find(`[data-qa-id="adview_gallery_container"] img`).Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			d.ImageURLs = append(d.ImageURLs, src)
		}
	})

	return d, nil
}

func (s *Scraper) getDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, scrape.Transient(SourceName, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, scrape.Transient(SourceName, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests:
		return nil, scrape.Blocking(SourceName, fmt.Errorf("status %d", res.StatusCode))
	case res.StatusCode >= 400:
		return nil, scrape.Transient(SourceName, fmt.Errorf("status %d", res.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, scrape.Transient(SourceName, fmt.Errorf("parse html: %w", err))
	}

	// The datadome interstitial comes back as a 200 with its own markup.
	if doc.Find("#datadome").Length() > 0 {
		return nil, scrape.Blocking(SourceName, fmt.Errorf("captcha interstitial"))
	}
	return doc, nil
}

func buildSearchURL(c scrape.Criteria) string {
	q := url.Values{}
	q.Set("category", "2") // cars
	q.Set("sort", "time")
	q.Set("order", "desc")
	if c.Query != "" {
		q.Set("text", c.Query)
	}
	if c.MaxPrice > 0 {
		q.Set("price", "min-"+strconv.Itoa(c.MaxPrice))
	}
	if len(c.Departments) > 0 {
		q.Set("locations", "d_"+strings.Join(c.Departments, ",d_"))
	}
	return "https://www.leboncoin.fr/recherche?" + q.Encode()
}

func adIDFromURL(adURL string) string {
	// .../voitures/2551234567.htm
	trimmed := strings.TrimSuffix(adURL, ".htm")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		id := trimmed[i+1:]
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			return id
		}
	}
	return ""
}

func splitLocation(loc string) (city, postal string) {
	// "Lyon 69003" or "Villeurbanne (69100)"
	loc = strings.NewReplacer("(", " ", ")", " ").Replace(loc)
	fields := strings.Fields(loc)
	for _, f := range fields {
		if len(f) == 5 {
			if _, err := strconv.Atoi(f); err == nil {
				postal = f
				continue
			}
		}
		if city == "" {
			city = f
		} else {
			city += " " + f
		}
	}
	return city, postal
}

func looksLikeYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1950 && n <= 2100
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
