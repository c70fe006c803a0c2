package breaker

import (
	"log"
	"sync/atomic"
	"time"
)

// State is the circuit position. The zero value is Closed.
type State int32

const (
	// Closed passes calls through and counts consecutive failures.
	Closed State = iota
	// Open short-circuits calls to the fallback until the cooldown elapses.
	Open
	// HalfOpen trials calls after the cooldown; consecutive successes close
	// the circuit again, a single failure reopens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// MarshalText keeps the state readable in JSON status snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReasonKind tells a fallback why it is running. Rate-limit rejections are
// distinct from provider failures and never touch the failure counters.
type ReasonKind int

const (
	ReasonFailure ReasonKind = iota
	ReasonOpen
	ReasonRateLimited
)

// Reason is handed to the fallback on every short-circuit or failure.
type Reason struct {
	Kind ReasonKind
	Err  error
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonOpen:
		return "circuit breaker is open"
	case ReasonRateLimited:
		return "rate limit exceeded"
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "operation failed"
	}
}

const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 3
	DefaultCooldown         = 60 * time.Second
	DefaultRateWindow       = 60 * time.Second
	DefaultMaxRequests      = 100
)

// Config tunes one breaker instance. Zero fields take the defaults above.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	RateWindow       time.Duration
	MaxRequests      int64

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Breaker guards calls to a fallible dependency. One instance is shared by
// every in-flight ingestion and retrieval in the process, so all state is
// held in atomics rather than behind a lock.
type Breaker struct {
	cfg Config

	state       atomic.Int32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64 // unix nanos, 0 = never

	requests    atomic.Int64
	windowStart atomic.Int64 // unix nanos
}

// Operation is the real call. Fallback runs instead of, or after, a failed
// operation and receives the reason.
type (
	Operation func() error
	Fallback  func(reason Reason) error
)

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultSuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	b := &Breaker{cfg: cfg}
	b.windowStart.Store(cfg.Now().UnixNano())
	return b
}

// Execute runs op under the breaker. On a short-circuit or an op failure the
// fallback result is returned instead; op errors never propagate directly.
func (b *Breaker) Execute(op Operation, fallback Fallback) error {
	if !b.allowRequest() {
		log.Printf("[BREAKER] rate limit exceeded, using fallback")
		return fallback(Reason{Kind: ReasonRateLimited})
	}

	if State(b.state.Load()) == Open {
		if !b.cooldownElapsed() {
			return fallback(Reason{Kind: ReasonOpen})
		}
		if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
			log.Printf("[BREAKER] transitioning to HALF_OPEN for trial call")
		}
	}

	if err := op(); err != nil {
		b.onFailure()
		log.Printf("[BREAKER] operation failed, using fallback: %v", err)
		return fallback(Reason{Kind: ReasonFailure, Err: err})
	}
	b.onSuccess()
	return nil
}

// allowRequest applies the sliding request-rate cap. Rejected calls count
// toward the window but never toward the circuit counters.
func (b *Breaker) allowRequest() bool {
	now := b.cfg.Now().UnixNano()
	start := b.windowStart.Load()
	if now-start >= int64(b.cfg.RateWindow) {
		if b.windowStart.CompareAndSwap(start, now) {
			b.requests.Store(0)
		}
	}
	return b.requests.Add(1) <= b.cfg.MaxRequests
}

func (b *Breaker) cooldownElapsed() bool {
	last := b.lastFailure.Load()
	if last == 0 {
		return true
	}
	return b.cfg.Now().UnixNano()-last >= int64(b.cfg.Cooldown)
}

func (b *Breaker) onSuccess() {
	b.failures.Store(0)

	if State(b.state.Load()) == HalfOpen {
		if b.successes.Add(1) >= int32(b.cfg.SuccessThreshold) {
			if b.state.CompareAndSwap(int32(HalfOpen), int32(Closed)) {
				b.successes.Store(0)
				log.Printf("[BREAKER] reset to CLOSED after %d successful trials", b.cfg.SuccessThreshold)
			}
		}
	}
}

func (b *Breaker) onFailure() {
	b.lastFailure.Store(b.cfg.Now().UnixNano())
	failures := b.failures.Add(1)

	// A single failure during a trial reopens the circuit immediately.
	if b.state.CompareAndSwap(int32(HalfOpen), int32(Open)) {
		b.successes.Store(0)
		log.Printf("[BREAKER] trial call failed, reopening circuit")
		return
	}

	if failures >= int32(b.cfg.FailureThreshold) {
		if b.state.CompareAndSwap(int32(Closed), int32(Open)) {
			log.Printf("[BREAKER] opened after %d consecutive failures", failures)
		}
	}
}

// Status is a point-in-time snapshot for the health surface.
type Status struct {
	State        State     `json:"state"`
	Failures     int32     `json:"failure_count"`
	Successes    int32     `json:"success_count"`
	LastFailure  time.Time `json:"last_failure_time"`
	RequestCount int64     `json:"request_count"`
}

func (b *Breaker) Status() Status {
	var last time.Time
	if ns := b.lastFailure.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Status{
		State:        State(b.state.Load()),
		Failures:     b.failures.Load(),
		Successes:    b.successes.Load(),
		LastFailure:  last,
		RequestCount: b.requests.Load(),
	}
}

// Reset forces the circuit closed with zero counters. Operator escape hatch,
// not part of normal operation.
func (b *Breaker) Reset() {
	b.state.Store(int32(Closed))
	b.failures.Store(0)
	b.successes.Store(0)
	b.lastFailure.Store(0)
	log.Printf("[BREAKER] manually reset")
}
