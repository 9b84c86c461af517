// Package probe tracks whether the voice backend is reachable. It backs the
// console's readiness endpoint and never retries a user operation.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"voice-agent-console/internal/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Probe struct {
	pinger   Pinger
	interval time.Duration
	minWait  time.Duration
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	ready   bool
	lastErr error
	checked time.Time
}

// New builds a probe that checks every interval while the backend is up and
// backs off exponentially from one second up to interval while it is down.
func New(p Pinger, interval time.Duration, log *logger.Logger) *Probe {
	if log == nil {
		log = logger.Discard()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	minWait := time.Second
	if minWait > interval {
		minWait = interval
	}
	return &Probe{
		pinger:   p,
		interval: interval,
		minWait:  minWait,
		timeout:  5 * time.Second,
		log:      log.Component("probe"),
	}
}

// Check pings once and records the outcome.
func (p *Probe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.pinger.Ping(ctx)

	p.mu.Lock()
	was := p.ready
	p.ready = err == nil
	p.lastErr = err
	p.checked = time.Now()
	p.mu.Unlock()

	switch {
	case err != nil && was:
		p.log.WithError(err).Warn("voice backend unreachable")
	case err == nil && !was:
		p.log.Info("voice backend reachable")
	}
	return err
}

// Run checks until ctx is done.
func (p *Probe) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.minWait
	b.MaxInterval = p.interval
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		wait := p.interval
		if err := p.Check(ctx); err != nil {
			wait = b.NextBackOff()
		} else {
			b.Reset()
		}
		if ctx.Err() != nil {
			return
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (p *Probe) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Status returns the outcome of the latest check.
func (p *Probe) Status() (ready bool, lastErr error, checked time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready, p.lastErr, p.checked
}
