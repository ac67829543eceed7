// Package scan drives the cycle: for every enabled source, fetch candidates
// through the health gate, normalize, dedupe, score, persist and notify.
// One source failing never aborts the cycle for the others.
package scan

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/dedup"
	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/events"
	"dealscan-engine/internal/health"
	"dealscan-engine/internal/metrics"
	"dealscan-engine/internal/notify"
	"dealscan-engine/internal/scrape"
	"dealscan-engine/internal/score"
)

const fetchTimeout = 45 * time.Second

// Storage is what the orchestrator needs from the database.
type Storage interface {
	SaveListing(ctx context.Context, l *domain.Listing) (isNew bool, err error)
	GetByFingerprint(ctx context.Context, fp string) (*domain.Listing, error)
	StartScan(ctx context.Context, rec *domain.ScanRecord) error
	FinishScan(ctx context.Context, rec *domain.ScanRecord) error
	RecordNotification(ctx context.Context, rec *domain.NotificationRecord) error
	MarkNotified(ctx context.Context, id int64, channels []string, at time.Time) error
	SaveSourceStates(ctx context.Context, states []health.SourceState) error
}

// Notifier dispatches a scored listing; the orchestrator records the results.
type Notifier interface {
	ChannelsFor(level domain.AlertLevel) []string
	Notify(ctx context.Context, l *domain.Listing) []notify.Result
}

type Orchestrator struct {
	cfg      config.Config
	registry *scrape.Registry
	tracker  *health.Tracker
	index    *dedup.Index
	store    Storage
	notifier Notifier
	hub      *events.Hub

	running atomic.Bool
	now     func() time.Time
}

func NewOrchestrator(cfg config.Config, reg *scrape.Registry, tracker *health.Tracker,
	index *dedup.Index, store Storage, notifier Notifier, hub *events.Hub) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		tracker:  tracker,
		index:    index,
		store:    store,
		notifier: notifier,
		hub:      hub,
		now:      time.Now,
	}
}

// TrackerConfig maps one source's YAML block onto the health gate parameters.
func TrackerConfig(sc config.SourceConfig) health.Config {
	return health.Config{
		MinInterval:       time.Duration(sc.MinIntervalSeconds * float64(time.Second)),
		Jitter:            time.Duration(sc.JitterSeconds * float64(time.Second)),
		FailureThreshold:  sc.FailureThreshold,
		BackoffBase:       time.Duration(sc.BackoffBaseSeconds) * time.Second,
		BackoffMultiplier: sc.BackoffMultiplier,
		BlockMultiplier:   sc.BlockMultiplier,
		BackoffMax:        time.Duration(sc.BackoffMaxSeconds) * time.Second,
	}
}

// Run executes cycles until ctx is canceled. An in-flight cycle always runs
// to completion; cancellation only stops the loop from starting another one.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := time.Duration(o.cfg.Scan.IntervalSeconds) * time.Second
	jitter := time.Duration(o.cfg.Scan.JitterSeconds) * time.Second

	for {
		o.RunCycle(context.Background())

		delay := interval
		if jitter > 0 {
			delay += time.Duration(rand.Float64() * float64(jitter))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunCycle scans every enabled source once. Cycles never overlap: a call
// while one is in flight returns immediately.
func (o *Orchestrator) RunCycle(parent context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		log.Printf("[scan] cycle already running, skipping")
		return
	}
	defer o.running.Store(false)

	metrics.ScanCyclesTotal.Inc()
	ctx, cancel := context.WithTimeout(parent,
		time.Duration(o.cfg.Scan.CycleTimeoutSeconds)*time.Second)
	defer cancel()

	names := o.enabledSources()
	if len(names) == 0 {
		log.Printf("[scan] no sources enabled")
		return
	}
	log.Printf("[scan] cycle start: %s", strings.Join(names, ", "))

	var detailBudget atomic.Int64
	detailBudget.Store(int64(o.cfg.Scan.MaxDetailPerCycle))

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Scan.Concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			o.scanSource(ctx, name, &detailBudget)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	states := o.tracker.States()
	for _, st := range states {
		metrics.SetBreakerState(st.Name, string(st.State))
	}
	o.publish(events.TypeBreakerChanged, states)
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := o.store.SaveSourceStates(saveCtx, states); err != nil {
		log.Printf("[scan] persist source states: %v", err)
	}
}

// Running reports whether a cycle is currently in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

func (o *Orchestrator) enabledSources() []string {
	var names []string
	for name, sc := range o.cfg.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type candOutcome int

const (
	candSkipped candOutcome = iota
	candNew
	candUpdated
)

func (o *Orchestrator) scanSource(ctx context.Context, name string, detailBudget *atomic.Int64) {
	rec := &domain.ScanRecord{Source: name, StartedAt: o.now().UTC(), Status: domain.ScanRunning}
	if err := o.store.StartScan(ctx, rec); err != nil {
		log.Printf("[scan] %s: start record: %v", name, err)
	}
	o.publish(events.TypeScanStarted, map[string]string{"source": name})

	fetcher, ok := o.registry.Fetcher(name)
	if !ok {
		o.finishScan(ctx, rec, domain.ScanError, "no plugin registered")
		return
	}

	for _, crit := range o.criteriaForTargets() {
		dec, proceed := o.gate(ctx, name)
		if !proceed {
			// Denied before the plugin is invoked; partial counts survive.
			log.Printf("[scan] %s: skipped (%s)", name, dec.Reason)
			o.finishScan(ctx, rec, domain.ScanError, dec.Reason)
			return
		}

		fctx, fcancel := context.WithTimeout(ctx, fetchTimeout)
		cands, err := fetcher.Fetch(fctx, crit)
		fcancel()
		if err != nil {
			outcome, kind := health.Failure, "transient"
			if scrape.IsBlocking(err) {
				outcome, kind = health.Blocked, "blocking"
			}
			o.tracker.RecordResult(name, outcome)
			metrics.FetchFailures.WithLabelValues(name, kind).Inc()
			log.Printf("[scan] %s: fetch failed (%s): %v", name, kind, err)
			o.finishScan(ctx, rec, domain.ScanError, err.Error())
			return
		}
		o.tracker.RecordResult(name, health.Success)

		rec.Found += len(cands)
		metrics.ListingsFound.WithLabelValues(name).Add(float64(len(cands)))

		for _, cand := range cands {
			out, err := o.processCandidate(ctx, name, cand, detailBudget)
			if err != nil {
				rec.Errors++
				log.Printf("[scan] %s: candidate %s: %v", name, cand.URL, err)
				continue
			}
			switch out {
			case candNew:
				rec.New++
			case candUpdated:
				rec.Updated++
			}
		}
	}

	o.finishScan(ctx, rec, domain.ScanSuccess, "")
}

// gate waits out rate-limit delays and reports whether a fetch may proceed.
func (o *Orchestrator) gate(ctx context.Context, key string) (health.Decision, bool) {
	for {
		dec := o.tracker.AttemptSlot(key)
		switch dec.Kind {
		case health.Proceed:
			return dec, true
		case health.Wait:
			select {
			case <-ctx.Done():
				return health.Decision{Kind: health.Denied, Reason: "cycle timeout"}, false
			case <-time.After(dec.Delay):
			}
		default:
			return dec, false
		}
	}
}

func (o *Orchestrator) processCandidate(ctx context.Context, source string, cand scrape.Candidate, detailBudget *atomic.Int64) (candOutcome, error) {
	now := o.now().UTC()
	l, err := normalizeCandidate(cand, now)
	if err != nil {
		return candSkipped, err
	}

	target, ok := score.MatchTarget(l, o.cfg.Targets)
	if !ok {
		return candSkipped, nil
	}

	// Card data rarely carries make/model; the matched target identifies the
	// vehicle, and the soft fingerprint needs that identity to avoid colliding
	// across unrelated cars that share year, km bucket and department.
	if l.Make == "" {
		l.Make = target.Make
	}
	if l.Model == "" && len(target.ModelPatterns) > 0 {
		l.Model = target.ModelPatterns[0]
	}
	l.SoftFingerprint = l.ComputeSoftFingerprint()

	firstSighting, err := o.index.IsNew(ctx, l.Fingerprint)
	if err != nil {
		return candSkipped, fmt.Errorf("dedup lookup: %w", err)
	}

	res := score.Evaluate(l, target, o.cfg.Keywords, o.cfg.Departments, now)

	// Second pass: promising listings get the detail page, then a rescore.
	if !res.Excluded && res.Breakdown.Total >= o.cfg.Scan.DetailThreshold {
		if o.fetchDetail(ctx, source, &l, detailBudget) {
			res = score.Evaluate(l, target, o.cfg.Keywords, o.cfg.Departments, now)
		}
	}

	l.Score = res.Breakdown.Total
	l.Breakdown = res.Breakdown
	l.AlertLevel = res.Level
	l.OpportunityIDs = res.OpportunityIDs
	l.RiskIDs = res.RiskIDs
	if res.Excluded {
		l.Status = domain.StatusExcluded
	}

	// The near-dup check must run before Register, or the listing's own soft
	// fingerprint would collide with itself.
	nearDup := false
	if firstSighting {
		nearDup, _ = o.index.IsNearDuplicate(ctx, l.SoftFingerprint)
	}

	// A known listing renotifies only when its tier rose, or on a price drop
	// when opted in.
	var priorPrice, priorRank int
	if !firstSighting {
		if prior, err := o.store.GetByFingerprint(ctx, l.Fingerprint); err == nil && prior != nil {
			priorPrice = prior.Price
			priorRank = prior.AlertLevel.Rank()
		}
	}

	inserted, err := o.store.SaveListing(ctx, &l)
	if err != nil {
		return candSkipped, fmt.Errorf("persist: %w", err)
	}
	o.index.Register(&l)

	if inserted {
		metrics.ListingsNew.WithLabelValues(source, string(l.AlertLevel)).Inc()
		o.publish(events.TypeListingCreated, &l)
	} else {
		metrics.ListingsUpdated.WithLabelValues(source).Inc()
		o.publish(events.TypeListingUpdated, map[string]any{"id": l.ID, "score": l.Score})
	}

	switch {
	case firstSighting && inserted && !res.Excluded:
		o.notifyListing(ctx, &l, nearDup)
	case !firstSighting && !res.Excluded && priorRank > 0 && l.AlertLevel.Rank() > priorRank:
		log.Printf("[scan] %s: tier rose to %s, renotifying", source, l.AlertLevel)
		o.notifyListing(ctx, &l, false)
	case o.cfg.Scan.RenotifyOnPriceDrop && priorPrice > 0 && l.Price > 0 && l.Price < priorPrice && !res.Excluded:
		log.Printf("[scan] %s: price drop %d -> %d EUR, renotifying", source, priorPrice, l.Price)
		o.notifyListing(ctx, &l, false)
	}

	if inserted {
		return candNew, nil
	}
	return candUpdated, nil
}

// fetchDetail runs the second pass when the source has a detail plugin, the
// per-cycle budget is not spent, and the detail gate allows it. The detail
// gate has its own tracker key so a blocked detail page never trips the
// search-page breaker.
func (o *Orchestrator) fetchDetail(ctx context.Context, source string, l *domain.Listing, budget *atomic.Int64) bool {
	df, ok := o.registry.DetailFetcher(source)
	if !ok || l.URL == "" {
		return false
	}
	if budget.Add(-1) < 0 {
		return false
	}

	key := source + "#detail"
	if _, proceed := o.gate(ctx, key); !proceed {
		return false
	}

	dctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	detail, err := df.FetchDetail(dctx, l.URL)
	cancel()
	if err != nil {
		outcome, status := health.Failure, "error"
		if scrape.IsBlocking(err) {
			outcome, status = health.Blocked, "blocked"
		}
		o.tracker.RecordResult(key, outcome)
		metrics.DetailFetches.WithLabelValues(source, status).Inc()
		log.Printf("[scan] %s: detail fetch %s: %v", source, l.URL, err)
		return false
	}
	o.tracker.RecordResult(key, health.Success)
	metrics.DetailFetches.WithLabelValues(source, "ok").Inc()

	applyDetail(l, detail)
	return true
}

func (o *Orchestrator) notifyListing(ctx context.Context, l *domain.Listing, nearDup bool) {
	channels := o.notifier.ChannelsFor(l.AlertLevel)
	if len(channels) == 0 {
		return
	}
	now := o.now().UTC()

	if nearDup && o.cfg.Scan.SuppressNearDuplicates {
		for _, ch := range channels {
			rec := &domain.NotificationRecord{
				ListingID:   l.ID,
				Fingerprint: l.Fingerprint,
				Channel:     ch,
				AlertLevel:  l.AlertLevel,
				Status:      domain.NotifySkipped,
				Error:       "near-duplicate suppressed",
				SentAt:      now,
			}
			if err := o.store.RecordNotification(ctx, rec); err != nil {
				log.Printf("[scan] record skipped notification: %v", err)
			}
			metrics.NotificationsTotal.WithLabelValues(ch, string(domain.NotifySkipped)).Inc()
		}
		return
	}

	results := o.notifier.Notify(ctx, l)
	var sent []string
	for _, res := range results {
		rec := &domain.NotificationRecord{
			ListingID:   l.ID,
			Fingerprint: l.Fingerprint,
			Channel:     res.Channel,
			AlertLevel:  l.AlertLevel,
			Status:      res.Status,
			SentAt:      now,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := o.store.RecordNotification(ctx, rec); err != nil {
			log.Printf("[scan] record notification: %v", err)
		}
		metrics.NotificationsTotal.WithLabelValues(res.Channel, string(res.Status)).Inc()
		if res.Status == domain.NotifySent {
			sent = append(sent, res.Channel)
		}
	}

	if len(sent) > 0 {
		l.MarkNotified(sent, now)
		if err := o.store.MarkNotified(ctx, l.ID, sent, now); err != nil {
			log.Printf("[scan] mark notified: %v", err)
		}
	}
}

// criteriaForTargets builds one search per configured target. The search
// radius is the two closest department tiers.
func (o *Orchestrator) criteriaForTargets() []scrape.Criteria {
	depts := append(append([]string(nil), o.cfg.Departments.Tier1...), o.cfg.Departments.Tier2...)

	var out []scrape.Criteria
	for _, t := range o.cfg.Targets {
		q := t.Make
		if len(t.ModelPatterns) > 0 {
			q = strings.TrimSpace(q + " " + t.ModelPatterns[0])
		}
		out = append(out, scrape.Criteria{
			Query:       q,
			MaxPrice:    t.PriceMax,
			Departments: depts,
		})
	}
	return out
}

func (o *Orchestrator) finishScan(ctx context.Context, rec *domain.ScanRecord, status domain.ScanStatus, msg string) {
	rec.Message = msg
	rec.Finish(status, o.now().UTC())
	metrics.ScanDuration.WithLabelValues(rec.Source, string(status)).
		Observe(float64(rec.DurationMS) / 1000)
	if err := o.store.FinishScan(ctx, rec); err != nil {
		log.Printf("[scan] %s: finish record: %v", rec.Source, err)
	}
	log.Printf("[scan] %s: %s found=%d new=%d updated=%d errors=%d in %dms",
		rec.Source, rec.Status, rec.Found, rec.New, rec.Updated, rec.Errors, rec.DurationMS)
	o.publish(events.TypeScanFinished, rec)
}

func (o *Orchestrator) publish(typ string, data any) {
	if o.hub != nil {
		o.hub.Publish(events.MakeEvent("", typ, 1, data))
	}
}
