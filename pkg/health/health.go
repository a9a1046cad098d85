// Package health serves liveness and readiness checks.
//
// Every registered check runs in its own goroutine on a fixed interval.
// A check turns unhealthy only after FailureThreshold consecutive failures
// and healthy again after SuccessThreshold consecutive successes, so a single
// slow database ping does not flap readiness.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option tunes a single check.
type Option func(*checker)

// WithFailureThreshold sets how many consecutive failures mark a check
// unhealthy. The default is 3.
func WithFailureThreshold(n int) Option {
	return func(p *checker) { p.failureThreshold = n }
}

// WithSuccessThreshold sets how many consecutive successes mark a check
// healthy again. The default is 1.
func WithSuccessThreshold(n int) Option {
	return func(p *checker) { p.successThreshold = n }
}

// checker is the state of one check. run is only ever called from the check's
// own goroutine, so the counters need no locking; healthy and lastErr are
// read concurrently by the HTTP handlers.
type checker struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails     int
	successes int
}

func newChecker(name string, timeout time.Duration, check CheckFunc, opts []Option) *checker {
	p := &checker{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)
	return p
}

func (p *checker) isHealthy() bool {
	return p.healthy.Load()
}

func (p *checker) getLastError() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *checker) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.successes = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.successes++
	if p.successes >= p.successThreshold {
		p.healthy.Store(true)
	}
}

func (p *checker) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Health holds the liveness and readiness checks of a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*checker
	readiness []*checker
	cancel    context.CancelFunc
}

// New creates a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process
// should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newChecker(name, timeout, check, opts))
}

// AddReadinessCheck registers a check that decides whether the service
// should receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newChecker(name, timeout, check, opts))
}

// Start runs every registered check on interval until Stop or ctx
// cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checkers := append(append([]*checker(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range checkers {
		go p.loop(ctx, interval)
	}
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch, typically to true after
// start-up and to false when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, p := range h.snapshot(false) {
		if !p.isHealthy() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(liveness bool) []*checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if liveness {
		return append([]*checker(nil), h.liveness...)
	}
	return append([]*checker(nil), h.readiness...)
}

// Routes mounts /livez and /readyz on r.
func (h *Health) Routes(r chi.Router) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

// LiveEndpoint answers 200 {"status":"ok"} when every liveness check passes
// and 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(true)))
}

// ReadyEndpoint is LiveEndpoint for readiness checks plus the manual switch.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

// failures maps unhealthy check names to their last error. The stored error
// is reported; checks are not re-executed per request.
func failures(checkers []*checker) map[string]string {
	out := make(map[string]string)
	for _, p := range checkers {
		if p.isHealthy() {
			continue
		}
		if err := p.getLastError(); err != nil {
			out[p.name] = err.Error()
		} else {
			out[p.name] = "check is unhealthy"
		}
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	status := http.StatusOK
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
