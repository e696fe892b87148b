package breaker

import (
	"sync"
	"time"

	"ai-coursegen-be/pkg/apperrors"
)

// State of the breaker for one logical endpoint.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Config struct {
	// WindowSize is the number of most recent call outcomes considered.
	WindowSize int
	// FailureThreshold opens the breaker when failures/attempts in the
	// window reach this ratio (e.g. 0.5).
	FailureThreshold float64
	// MinSamples is the minimum number of outcomes in the window before
	// the ratio is evaluated, so a single early failure cannot open it.
	MinSamples int
	// CoolDown is the open interval before a half-open probe is allowed.
	CoolDown time.Duration
	// MaxCoolDown caps the exponential growth on successive reopenings.
	MaxCoolDown time.Duration
}

func DefaultConfig() Config {
	return Config{
		WindowSize:       10,
		FailureThreshold: 0.5,
		MinSamples:       4,
		CoolDown:         30 * time.Second,
		MaxCoolDown:      10 * time.Minute,
	}
}

// Breaker guards one logical endpoint (e.g. one model name). It is
// shared across all workers targeting that endpoint; all state changes
// happen under the mutex so concurrent outcome reports cannot be lost.
type Breaker struct {
	mu sync.Mutex

	endpoint string
	cfg      Config
	state    State

	window  []bool // true = failure
	nextIdx int
	filled  int

	openedAt      time.Time
	reopenCount   int
	probeInFlight bool

	now func() time.Time // injectable clock for tests
}

func New(endpoint string, cfg Config) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultConfig().CoolDown
	}
	if cfg.MaxCoolDown < cfg.CoolDown {
		cfg.MaxCoolDown = cfg.CoolDown
	}
	return &Breaker{
		endpoint: endpoint,
		cfg:      cfg,
		state:    StateClosed,
		window:   make([]bool, cfg.WindowSize),
		now:      time.Now,
	}
}

// Allow reports whether a call may proceed. In half-open state exactly
// one probe is let through; everyone else gets CircuitOpenError.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.currentCoolDown() {
			b.transition(StateHalfOpen)
			b.probeInFlight = true
			return nil
		}
		return apperrors.NewCircuitOpen(b.endpoint)
	case StateHalfOpen:
		if b.probeInFlight {
			return apperrors.NewCircuitOpen(b.endpoint)
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		if success {
			b.reset()
			b.transition(StateClosed)
		} else {
			b.reopenCount++
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateClosed:
		b.push(!success)
		if b.shouldTrip() {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateOpen:
		// A call admitted just before the trip finished late; its
		// outcome no longer matters.
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) push(failure bool) {
	b.window[b.nextIdx] = failure
	b.nextIdx = (b.nextIdx + 1) % len(b.window)
	if b.filled < len(b.window) {
		b.filled++
	}
}

func (b *Breaker) shouldTrip() bool {
	if b.filled < b.cfg.MinSamples {
		return false
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures)/float64(b.filled) >= b.cfg.FailureThreshold
}

func (b *Breaker) currentCoolDown() time.Duration {
	cd := b.cfg.CoolDown
	for i := 0; i < b.reopenCount; i++ {
		cd *= 2
		if cd >= b.cfg.MaxCoolDown {
			return b.cfg.MaxCoolDown
		}
	}
	return cd
}

func (b *Breaker) reset() {
	b.window = make([]bool, b.cfg.WindowSize)
	b.nextIdx = 0
	b.filled = 0
	b.reopenCount = 0
	b.probeInFlight = false
}

func (b *Breaker) transition(next State) {
	b.state = next
}

// Registry hands out one breaker per logical endpoint.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	b := New(endpoint, r.cfg)
	r.breakers[endpoint] = b
	return b
}
