package domain

import (
	"net/url"
	"sort"
	"strings"
)

var accentFold = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a", "ä", "a",
	"ù", "u", "û", "u", "ü", "u",
	"ô", "o", "ö", "o",
	"î", "i", "ï", "i",
	"ç", "c",
)

// NormalizeText lowercases, folds French accents and collapses everything
// that is not a letter, digit or space. Keyword matching and fingerprints
// both go through here so they agree on what "the same text" means.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = accentFold.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// trackingParams are query parameters that change between visits without
// changing the listing behind the URL.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"ref": {}, "referer": {}, "fbclid": {}, "gclid": {}, "msclkid": {}, "mc_cid": {}, "mc_eid": {},
	"source": {}, "origin": {}, "searchid": {}, "gallerymode": {},
}

// CanonicalizeURL strips tracking parameters and fragments and normalizes the
// host so the same ad reached through two links produces one fingerprint.
func CanonicalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	for k := range q {
		if _, drop := trackingParams[strings.ToLower(k)]; drop {
			q.Del(k)
		}
	}

	// url.Values.Encode sorts keys, which keeps the output deterministic.
	u.RawQuery = q.Encode()
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// DepartmentFromPostalCode extracts the French department code from a postal
// code ("75011" -> "75", Corsica and overseas handled by prefix length).
func DepartmentFromPostalCode(cp string) string {
	cp = strings.TrimSpace(cp)
	if len(cp) < 2 {
		return ""
	}
	if strings.HasPrefix(cp, "97") || strings.HasPrefix(cp, "98") {
		if len(cp) >= 3 {
			return cp[:3]
		}
	}
	return cp[:2]
}

// SortedCopy returns a sorted copy of ids; keyword id lists are stored sorted
// so identical matches serialize identically.
func SortedCopy(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
