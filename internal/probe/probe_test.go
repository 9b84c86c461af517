package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-console/internal/logger"
)

type flakyPinger struct {
	mu    sync.Mutex
	calls int
	fails int
}

func (f *flakyPinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return errors.New("connection refused")
	}
	return nil
}

func (f *flakyPinger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCheckRecordsOutcome(t *testing.T) {
	p := New(&flakyPinger{fails: 1}, time.Minute, logger.Discard())
	assert.False(t, p.Ready())

	require.Error(t, p.Check(context.Background()))
	ready, lastErr, checked := p.Status()
	assert.False(t, ready)
	assert.EqualError(t, lastErr, "connection refused")
	assert.False(t, checked.IsZero())

	require.NoError(t, p.Check(context.Background()))
	assert.True(t, p.Ready())
}

func TestRunBacksOffUntilReachable(t *testing.T) {
	pinger := &flakyPinger{fails: 2}
	p := New(pinger, 50*time.Millisecond, logger.Discard())
	p.minWait = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, p.Ready, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, pinger.count(), 3)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
