// Package health gates fetch attempts per source: a minimum-interval rate
// limiter with jitter, plus a closed/open/half-open circuit breaker. Each
// source is tracked independently; one source tripping never delays another.
package health

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type Outcome int

const (
	Success Outcome = iota
	// Failure is a transient fetch failure (timeout, 5xx-equivalent).
	Failure
	// Blocked is an anti-bot detection signature; it backs off steeper.
	Blocked
)

type DecisionKind int

const (
	Proceed DecisionKind = iota
	Wait
	Denied
)

// Decision answers "may I fetch from this source right now".
// Wait means try again after Delay; Denied means skip this cycle.
type Decision struct {
	Kind   DecisionKind
	Delay  time.Duration
	Reason string
}

type Config struct {
	MinInterval       time.Duration
	Jitter            time.Duration
	FailureThreshold  int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	BlockMultiplier   float64
	BackoffMax        time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = 2 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Minute
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2
	}
	if c.BlockMultiplier < c.BackoffMultiplier {
		c.BlockMultiplier = c.BackoffMultiplier
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = 10 * time.Minute
	}
	return c
}

// SourceState is the persistable snapshot of one source's breaker.
type SourceState struct {
	Name          string        `json:"name"`
	State         BreakerState  `json:"state"`
	Failures      int           `json:"failures"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	NextRetryAt   time.Time     `json:"next_retry_at"`
	Backoff       time.Duration `json:"backoff"`
}

type source struct {
	cfg      Config
	state    BreakerState
	failures int
	lastFail time.Time
	nextTry  time.Time
	backoff  time.Duration
	probing  bool
	limiter  *rate.Limiter
}

type Tracker struct {
	mu       sync.Mutex
	defaults Config
	sources  map[string]*source

	// injectable for tests
	now  func() time.Time
	rand func() float64
}

func NewTracker(defaults Config) *Tracker {
	return &Tracker{
		defaults: defaults.withDefaults(),
		sources:  make(map[string]*source),
		now:      time.Now,
		rand:     rand.Float64,
	}
}

// Configure registers per-source limits; unseen sources fall back to the
// tracker defaults. Safe to call before the scan loop starts only.
func (t *Tracker) Configure(name string, cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[name] = t.newSource(cfg)
}

func (t *Tracker) newSource(cfg Config) *source {
	cfg = cfg.withDefaults()
	return &source{
		cfg:     cfg,
		state:   StateClosed,
		backoff: cfg.BackoffBase,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

func (t *Tracker) get(name string) *source {
	s, ok := t.sources[name]
	if !ok {
		s = t.newSource(t.defaults)
		t.sources[name] = s
	}
	return s
}

// AttemptSlot decides whether a fetch may be attempted for the source now.
// When the breaker is open it denies without consuming a rate slot; when the
// inter-request interval has not elapsed it returns Wait with the jittered
// remaining delay and leaves the slot unconsumed.
func (t *Tracker) AttemptSlot(name string) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(name)
	now := t.now()

	switch s.state {
	case StateOpen:
		if now.Before(s.nextTry) {
			return Decision{Kind: Denied, Delay: s.nextTry.Sub(now), Reason: "circuit open"}
		}
		s.state = StateHalfOpen
		s.probing = false
	case StateHalfOpen:
		if s.probing {
			return Decision{Kind: Denied, Reason: "probe in flight"}
		}
	}

	res := s.limiter.ReserveN(now, 1)
	if !res.OK() {
		return Decision{Kind: Denied, Reason: "rate limiter exhausted"}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		jitter := time.Duration(t.rand() * float64(s.cfg.Jitter))
		return Decision{Kind: Wait, Delay: delay + jitter}
	}

	if s.state == StateHalfOpen {
		s.probing = true
	}
	return Decision{Kind: Proceed}
}

// RecordResult feeds one fetch outcome back into the breaker.
func (t *Tracker) RecordResult(name string, outcome Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(name)
	now := t.now()

	if outcome == Success {
		switch s.state {
		case StateHalfOpen:
			s.state = StateClosed
			s.failures = 0
			s.backoff = s.cfg.BackoffBase
			s.probing = false
		case StateClosed:
			s.failures = 0
		}
		return
	}

	s.failures++
	s.lastFail = now

	mult := s.cfg.BackoffMultiplier
	if outcome == Blocked {
		mult = s.cfg.BlockMultiplier
	}

	switch s.state {
	case StateHalfOpen:
		// Failed probe: reopen with a longer pause.
		s.backoff = capDuration(time.Duration(float64(s.backoff)*mult), s.cfg.BackoffMax)
		t.open(s, now)
	case StateClosed:
		if s.failures >= s.cfg.FailureThreshold {
			t.open(s, now)
		}
	}
}

func (t *Tracker) open(s *source, now time.Time) {
	s.state = StateOpen
	s.nextTry = now.Add(s.backoff)
	s.probing = false
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

// States returns a sorted snapshot of all tracked sources, for persistence
// and the status API.
func (t *Tracker) States() []SourceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SourceState, 0, len(t.sources))
	for name, s := range t.sources {
		out = append(out, SourceState{
			Name:          name,
			State:         s.state,
			Failures:      s.failures,
			LastFailureAt: s.lastFail,
			NextRetryAt:   s.nextTry,
			Backoff:       s.backoff,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore seeds breaker state persisted by a previous run. Rate limiter state
// is not restored; the first request after a restart is always allowed.
func (t *Tracker) Restore(states []SourceState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, st := range states {
		s := t.get(st.Name)
		s.state = st.State
		s.failures = st.Failures
		s.lastFail = st.LastFailureAt
		s.nextTry = st.NextRetryAt
		if st.Backoff > 0 {
			s.backoff = st.Backoff
		}
		s.probing = false
	}
}
