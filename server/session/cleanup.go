package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultIdleTimeout is how long a session may sit without activity
	// before the reaper ends it.
	DefaultIdleTimeout = 10 * time.Minute
	// DefaultSweepInterval is the default interval between reaper sweeps.
	DefaultSweepInterval = time.Minute
)

// ReaperConfig holds configuration for the idle-session reaper.
type ReaperConfig struct {
	IdleTimeout   time.Duration // end sessions idle longer than this
	SweepInterval time.Duration // interval between sweeps
}

// DefaultReaperConfig returns the default reaper configuration.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		IdleTimeout:   DefaultIdleTimeout,
		SweepInterval: DefaultSweepInterval,
	}
}

// Reaper periodically ends sessions whose calls went silent without a clean
// hangup (dropped connections, webhook misfires).
type Reaper struct {
	store  *Store
	config ReaperConfig

	// onEnd, when set, receives each reaped session so it can be flushed
	// to the audit sink like a normal hangup.
	onEnd func(ctx context.Context, sess *Session)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewReaper creates a new idle-session reaper.
func NewReaper(store *Store, config ReaperConfig, onEnd func(ctx context.Context, sess *Session)) *Reaper {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	return &Reaper{
		store:  store,
		config: config,
		onEnd:  onEnd,
	}
}

// Start begins the periodic sweep. Non-blocking; the sweep runs in a goroutine.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})

	go r.run(ctx)

	slog.Info("session reaper started",
		"idle_timeout", r.config.IdleTimeout,
		"sweep_interval", r.config.SweepInterval)
}

// Stop stops the reaper.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stopChan)
	r.running = false
}

func (r *Reaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.config.IdleTimeout)
	for _, id := range r.store.ActiveIDs() {
		sess, err := r.store.Get(id)
		if err != nil {
			continue
		}
		if sess.LastActivity().After(cutoff) {
			continue
		}
		ended, err := r.store.End(id)
		if err != nil {
			continue
		}
		slog.Info("reaped idle session",
			"call_sid", id,
			"idle_for", time.Since(ended.LastActivity()).Round(time.Second))
		if r.onEnd != nil {
			r.onEnd(ctx, ended)
		}
	}
}
