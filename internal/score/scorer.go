// Package score turns a listing plus a target configuration into a 0-100
// score with a per-axis breakdown and an alert tier. Evaluate is pure:
// identical inputs always produce identical output, so historical listings
// can be replayed against new configurations.
package score

import (
	"fmt"
	"strings"
	"time"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/domain"
)

// marginBuffer is the safety margin subtracted from every resale estimate.
const marginBuffer = 200

type Result struct {
	Breakdown      domain.ScoreBreakdown
	Level          domain.AlertLevel
	OpportunityIDs []string
	RiskIDs        []string
	Excluded       bool
	ExcludeReason  string
}

// MatchTarget finds the first configured target the listing belongs to.
func MatchTarget(l domain.Listing, targets []config.Target) (config.Target, bool) {
	lMake := domain.NormalizeText(l.Make)
	lModel := domain.NormalizeText(l.Model)
	lTitle := domain.NormalizeText(l.Title)
	lVersion := domain.NormalizeText(l.Version)

	for _, t := range targets {
		tMake := domain.NormalizeText(t.Make)
		if lMake != "" && !strings.Contains(lMake, tMake) && !strings.Contains(tMake, lMake) {
			continue
		}
		if lMake == "" && !strings.Contains(lTitle, tMake) {
			continue
		}

		modelHit := false
		for _, p := range t.ModelPatterns {
			p = domain.NormalizeText(p)
			if p == "" {
				continue
			}
			if strings.Contains(lModel, p) || strings.Contains(lTitle, p) || strings.Contains(lVersion, p) {
				modelHit = true
				break
			}
		}
		if !modelHit {
			continue
		}

		if t.Fuel != "" && l.Fuel != domain.FuelUnknown && string(l.Fuel) != t.Fuel {
			continue
		}

		excluded := false
		for _, ex := range t.Exclusions {
			ex = domain.NormalizeText(ex)
			if ex != "" && (strings.Contains(lTitle, ex) || strings.Contains(lVersion, ex)) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		return t, true
	}
	return config.Target{}, false
}

// LevelFor maps a total score onto the configured tiers. Thresholds are
// ordered by descending inclusive lower bound, so a score exactly at a cutoff
// lands in the higher tier.
func LevelFor(total int, thresholds []config.Threshold) domain.AlertLevel {
	for _, th := range thresholds {
		if total >= th.Min {
			return domain.AlertLevel(th.Level)
		}
	}
	return domain.AlertArchive
}

// Evaluate scores a listing against one target. now is a parameter, not a
// clock read, to keep the function replayable.
func Evaluate(l domain.Listing, t config.Target, kw config.Keywords, depts config.Departments, now time.Time) Result {
	var r Result
	text := l.SearchText()

	// Exclusion keywords override everything.
	for _, term := range kw.Exclusion {
		nt := domain.NormalizeText(term)
		if nt != "" && strings.Contains(text, nt) {
			r.Excluded = true
			r.ExcludeReason = term
			r.Level = domain.AlertExcluded
			r.Breakdown.RiskDetail = "excluded: " + term
			return r
		}
	}

	bonus, penalty, repairCost, oppIDs, riskIDs, critical := matchKeywords(text, kw)
	r.OpportunityIDs = oppIDs
	r.RiskIDs = riskIDs

	b := &r.Breakdown
	b.PriceScore, b.PriceDetail = scorePrice(l, t, len(riskIDs) > 0)
	b.MileageScore, b.MileageDetail = scoreMileage(l, t)
	b.FreshnessScore, b.FreshnessDetail = scoreFreshness(l, t, now)

	b.KeywordScore = min(t.Weights.Keywords, bonus)
	if len(oppIDs) > 0 {
		b.KeywordDetail = strings.Join(oppIDs, ", ")
	} else {
		b.KeywordDetail = "none"
	}

	b.BonusScore, b.BonusDetail = scoreBonus(l, t, depts)

	b.RiskPenalty = penalty
	if len(riskIDs) > 0 {
		b.RiskDetail = fmt.Sprintf("%s (~%d EUR)", strings.Join(riskIDs, ", "), repairCost)
	} else {
		b.RiskDetail = "none"
	}

	b.MarginMin, b.MarginMax, b.RepairCost = estimateMargin(l, t, repairCost)
	b.MarginBonus = marginBonus(b.MarginMin, t.Weights.Margin)

	raw := b.PriceScore + b.MileageScore + b.FreshnessScore + b.KeywordScore + b.BonusScore + b.RiskPenalty + b.MarginBonus
	b.Total = clamp(raw, 0, 100)

	// A critical risk keyword caps the score below the interesting band
	// unless the margin still covers the worst case.
	if critical && b.Total >= 60 && b.MarginMin < 1000 {
		b.Total = 59
	}

	r.Level = LevelFor(b.Total, t.AlertThresholds)
	return r
}

func matchKeywords(text string, kw config.Keywords) (bonus, penalty, repairCost int, oppIDs, riskIDs []string, critical bool) {
	for _, k := range kw.Opportunity {
		if matchAny(text, k.Terms) {
			bonus += k.Weight
			oppIDs = append(oppIDs, k.ID)
		}
	}
	for _, k := range kw.Risk {
		if matchAny(text, k.Terms) {
			penalty += k.Weight
			repairCost += k.RepairCost
			riskIDs = append(riskIDs, k.ID)
			if k.Severity == "critical" {
				critical = true
			}
		}
	}
	return bonus, penalty, repairCost, domain.SortedCopy(oppIDs), domain.SortedCopy(riskIDs), critical
}

func matchAny(text string, terms []string) bool {
	for _, term := range terms {
		nt := domain.NormalizeText(term)
		if nt != "" && strings.Contains(text, nt) {
			return true
		}
	}
	return false
}

func scorePrice(l domain.Listing, t config.Target, hasRisk bool) (int, string) {
	max := t.Weights.Price
	if l.Price <= 0 {
		return 0, "price not listed"
	}
	if l.Price > t.PriceMax {
		return 0, fmt.Sprintf("%d EUR above %d EUR max", l.Price, t.PriceMax)
	}

	market := t.MarketPrice
	if market <= 0 {
		market = (t.PriceMin + t.PriceMax) / 2
	}

	// Below the expected band is an opportunity, not a defect, but it only
	// gets full points when nothing else smells (private seller, photos,
	// no risk keywords).
	if l.Price < t.PriceMin {
		discount := 0
		if market > 0 {
			discount = 100 - l.Price*100/market
		}
		if !hasRisk && l.SellerType == domain.SellerPrivate && len(l.ImageURLs) > 0 {
			return max, fmt.Sprintf("%d EUR (-%d%% vs market)", l.Price, discount)
		}
		return max * 9 / 10, fmt.Sprintf("%d EUR (-%d%% vs market, verify)", l.Price, discount)
	}

	span := t.PriceMax - t.PriceMin
	if span <= 0 {
		return max / 2, "invalid price band"
	}
	pts := max * (t.PriceMax - l.Price) / span

	if market > 0 && l.Price*100 < market*85 {
		discount := 100 - l.Price*100/market
		pts = min(max, pts+max*15/100)
		return pts, fmt.Sprintf("%d EUR (-%d%% vs market %d EUR)", l.Price, discount, market)
	}
	return pts, fmt.Sprintf("%d EUR (band %d-%d EUR)", l.Price, t.PriceMin, t.PriceMax)
}

func scoreMileage(l domain.Listing, t config.Target) (int, string) {
	max := t.Weights.Mileage
	if l.Mileage <= 0 {
		return max * 3 / 10, "mileage not listed"
	}

	km := l.Mileage
	switch {
	case km < t.MileageMin:
		return max / 2, fmt.Sprintf("%d km below %d km (verify)", km, t.MileageMin)
	case km > t.MileageMax:
		return 0, fmt.Sprintf("%d km above %d km max", km, t.MileageMax)
	case km >= t.MileageIdealMin && km <= t.MileageIdealMax:
		return max, fmt.Sprintf("%d km (ideal)", km)
	case km < t.MileageIdealMin:
		span := t.MileageIdealMin - t.MileageMin
		if span <= 0 {
			return max, fmt.Sprintf("%d km", km)
		}
		ratio := (km - t.MileageMin) * 100 / span
		return max * (70 + 30*ratio/100) / 100, fmt.Sprintf("%d km", km)
	default: // above ideal
		span := t.MileageMax - t.MileageIdealMax
		if span <= 0 {
			return 0, fmt.Sprintf("%d km (high)", km)
		}
		ratio := (t.MileageMax - km) * 100 / span
		return max * 70 * ratio / 100 / 100, fmt.Sprintf("%d km (high)", km)
	}
}

// scoreFreshness decays monotonically with listing age: full points inside
// the first hour, nothing after a week.
func scoreFreshness(l domain.Listing, t config.Target, now time.Time) (int, string) {
	max := t.Weights.Freshness
	if l.PublishedAt == nil {
		return max / 2, "publish date unknown"
	}

	hours := now.Sub(*l.PublishedAt).Hours()
	switch {
	case hours < 1:
		return max, "under 1h"
	case hours < 3:
		return max * 95 / 100, fmt.Sprintf("%dh", int(hours))
	case hours < 6:
		return max * 85 / 100, fmt.Sprintf("%dh", int(hours))
	case hours < 12:
		return max * 70 / 100, fmt.Sprintf("%dh", int(hours))
	case hours < 24:
		return max * 50 / 100, fmt.Sprintf("%dh", int(hours))
	case hours < 48:
		return max * 30 / 100, "1-2d"
	case hours < 168:
		return max * 15 / 100, fmt.Sprintf("%dd", int(hours/24))
	default:
		return 0, "over a week"
	}
}

func scoreBonus(l domain.Listing, t config.Target, depts config.Departments) (int, string) {
	max := t.Weights.Bonus
	total := 0
	var parts []string

	if l.Department != "" {
		switch {
		case containsString(depts.Tier1, l.Department):
			total += 5
			parts = append(parts, l.Department+" (close)")
		case containsString(depts.Tier2, l.Department):
			total += 3
			parts = append(parts, l.Department)
		case containsString(depts.Tier3, l.Department):
			total += 1
			parts = append(parts, l.Department)
		}
	}

	switch l.SellerType {
	case domain.SellerPrivate:
		total += 3
		parts = append(parts, "private seller")
	case domain.SellerDealer:
		total -= 1
		parts = append(parts, "dealer")
	}

	if len(l.ImageURLs) >= 5 {
		total += 1
		parts = append(parts, fmt.Sprintf("%d photos", len(l.ImageURLs)))
	}

	detail := "none"
	if len(parts) > 0 {
		detail = strings.Join(parts, ", ")
	}
	return clamp(total, 0, max), detail
}

// estimateMargin computes resale minus price minus estimated repairs minus a
// fixed safety buffer, floored at zero.
func estimateMargin(l domain.Listing, t config.Target, repairCost int) (int, int, int) {
	if l.Price <= 0 {
		return 0, 0, repairCost
	}
	resaleMin := t.ResaleMin
	resaleMax := t.ResaleMax
	if resaleMin <= 0 {
		resaleMin = l.Price + 500
	}
	if resaleMax <= 0 {
		resaleMax = l.Price + 1500
	}
	lo := resaleMin - l.Price - repairCost - marginBuffer
	hi := resaleMax - l.Price - repairCost - marginBuffer
	return maxInt(0, lo), maxInt(0, hi), repairCost
}

func marginBonus(marginMin, max int) int {
	switch {
	case marginMin >= 1500:
		return max
	case marginMin >= 1000:
		return max * 7 / 10
	case marginMin >= 500:
		return max * 4 / 10
	default:
		return 0
	}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
