package config

import (
	"fmt"
	"sort"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults, trims lists and checks the pieces the
// scan pipeline relies on. It returns a normalized copy.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	// ---- scan defaults ----

	if out.Scan.IntervalSeconds <= 0 {
		out.Scan.IntervalSeconds = 300
	}
	if out.Scan.JitterSeconds < 0 {
		out.Scan.JitterSeconds = 0
	}
	if out.Scan.Concurrency <= 0 {
		out.Scan.Concurrency = 1
	}
	if out.Scan.CycleTimeoutSeconds <= 0 {
		out.Scan.CycleTimeoutSeconds = 240
	}
	if out.Scan.MaxDetailPerCycle <= 0 {
		out.Scan.MaxDetailPerCycle = 20
	}
	if out.Scan.IntervalSeconds < 60 {
		res.addWarn("scan.interval_seconds is very low (%d) and may get sources blocked.", out.Scan.IntervalSeconds)
	}

	// ---- sources ----

	enabled := 0
	for name, s := range out.Sources {
		if !s.Enabled {
			continue
		}
		enabled++
		if s.MinIntervalSeconds <= 0 {
			s.MinIntervalSeconds = 2.0
		}
		if s.JitterSeconds < 0 {
			s.JitterSeconds = 0
		}
		if s.FailureThreshold <= 0 {
			s.FailureThreshold = 3
		}
		if s.BackoffBaseSeconds <= 0 {
			s.BackoffBaseSeconds = 120
		}
		if s.BackoffMultiplier < 1 {
			s.BackoffMultiplier = 2.0
		}
		if s.BlockMultiplier < s.BackoffMultiplier {
			s.BlockMultiplier = s.BackoffMultiplier
		}
		if s.BackoffMaxSeconds < s.BackoffBaseSeconds {
			s.BackoffMaxSeconds = 600
		}
		out.Sources[name] = s
	}
	if enabled == 0 {
		res.addErr("no sources enabled")
	}

	// ---- targets ----

	if len(out.Targets) == 0 {
		res.addErr("no targets configured")
	}
	seenIDs := map[string]bool{}
	for i, t := range out.Targets {
		if strings.TrimSpace(t.ID) == "" {
			res.addErr("targets[%d]: id is required", i)
		} else if seenIDs[t.ID] {
			res.addErr("duplicate target id %q", t.ID)
		}
		seenIDs[t.ID] = true

		if strings.TrimSpace(t.Make) == "" || len(t.ModelPatterns) == 0 {
			res.addErr("target %q: make and model_patterns are required", t.ID)
		}
		if t.PriceMax <= t.PriceMin {
			res.addErr("target %q: price_max must be > price_min", t.ID)
		}
		if t.MileageMax <= t.MileageMin {
			res.addErr("target %q: mileage_max must be > mileage_min", t.ID)
		}

		t.ModelPatterns = trimList(t.ModelPatterns)
		t.Exclusions = trimList(t.Exclusions)

		if t.MileageIdealMin == 0 {
			t.MileageIdealMin = t.MileageMin
		}
		if t.MileageIdealMax == 0 && t.MileageMax > 30000 {
			t.MileageIdealMax = t.MileageMax - 30000
		}

		if t.Weights == (AxisWeights{}) {
			t.Weights = AxisWeights{Price: 35, Mileage: 25, Keywords: 15, Freshness: 10, Bonus: 10, Margin: 5}
		}
		if len(t.AlertThresholds) == 0 {
			t.AlertThresholds = []Threshold{
				{Level: "urgent", Min: 80},
				{Level: "interesting", Min: 60},
				{Level: "watch", Min: 40},
				{Level: "archive", Min: 0},
			}
		}

		// Ordered descending, inclusive lower bounds; overlapping ranges
		// would make tier selection ambiguous.
		sort.SliceStable(t.AlertThresholds, func(a, b int) bool {
			return t.AlertThresholds[a].Min > t.AlertThresholds[b].Min
		})
		for j := 1; j < len(t.AlertThresholds); j++ {
			if t.AlertThresholds[j].Min == t.AlertThresholds[j-1].Min {
				res.addErr("target %q: duplicate alert threshold at %d", t.ID, t.AlertThresholds[j].Min)
			}
		}

		out.Targets[i] = t
	}

	// ---- keywords ----

	out.Keywords.Exclusion = trimList(out.Keywords.Exclusion)
	for i, k := range out.Keywords.Opportunity {
		if k.Weight < 0 {
			res.addWarn("opportunity keyword %q has negative weight; did you mean a risk keyword?", k.ID)
		}
		out.Keywords.Opportunity[i].Terms = trimList(k.Terms)
	}
	for i, k := range out.Keywords.Risk {
		if k.Weight > 0 {
			res.addWarn("risk keyword %q has positive weight; did you mean an opportunity keyword?", k.ID)
		}
		out.Keywords.Risk[i].Terms = trimList(k.Terms)
	}

	// ---- notify routing ----

	known := map[string]bool{}
	if out.Notify.Discord.Enabled {
		known["discord"] = true
	}
	if out.Notify.NATS.Enabled {
		known["nats"] = true
	}
	for tier, channels := range out.Notify.Routes {
		switch tier {
		case "urgent", "interesting", "watch", "archive", "excluded":
		default:
			res.addErr("notify.routes: unknown tier %q", tier)
		}
		for _, c := range channels {
			if !known[c] {
				res.addWarn("notify.routes[%s]: channel %q is not enabled", tier, c)
			}
		}
	}
	if out.Notify.NATS.Enabled && strings.TrimSpace(out.Notify.NATS.Subject) == "" {
		res.addErr("notify.nats.subject is required when nats is enabled")
	}

	return out, res
}
