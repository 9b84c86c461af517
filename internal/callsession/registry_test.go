package callsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-console/internal/logger"
)

func TestRegistryOpenGetClose(t *testing.T) {
	r := NewRegistry(logger.Discard())
	c := &fakeClient{}

	id, s := r.Open("call_1", "tok", "retell", factoryFor(c))
	require.NotEmpty(t, id)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, r.Close(id))
	_, ok = r.Get(id)
	assert.False(t, ok)
	_, disconnects := c.counts()
	assert.Equal(t, 1, disconnects)

	assert.ErrorIs(t, r.Close(id), ErrSessionNotFound)
}

func TestRegistryCallerOptionsApply(t *testing.T) {
	r := NewRegistry(nil)
	c := &fakeClient{connectOnJoin: true}
	_, s := r.Open("", "", "pipecat", factoryFor(c), WithTokenOptional())
	require.NoError(t, s.Join(context.Background()))
	assert.Equal(t, StateConnected, s.State())
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(logger.Discard())
	clients := []*fakeClient{{}, {}, {}}
	for _, c := range clients {
		r.Open("call", "tok", "retell", factoryFor(c))
	}
	require.Equal(t, 3, r.Len())

	r.CloseAll()
	assert.Zero(t, r.Len())
	for _, c := range clients {
		_, disconnects := c.counts()
		assert.Equal(t, 1, disconnects)
	}
}

func TestRegistrySweepClosesIdlePanels(t *testing.T) {
	r := NewRegistry(logger.Discard())

	readyC := &fakeClient{}
	readyID, _ := r.Open("call_ready", "tok", "retell", factoryFor(readyC))

	endedC := &fakeClient{}
	endedID, ended := r.Open("call_ended", "tok", "retell", factoryFor(endedC))
	endedC.handlers().OnEnded()
	require.Equal(t, StateEnded, ended.State())

	liveC := &fakeClient{connectOnJoin: true}
	liveID, live := r.Open("call_live", "tok", "retell", factoryFor(liveC))
	require.NoError(t, live.Join(context.Background()))
	require.Equal(t, StateConnected, live.State())

	// nothing is old enough yet
	assert.Zero(t, r.sweep(time.Now(), time.Hour))
	assert.Equal(t, 3, r.Len())

	assert.Equal(t, 2, r.sweep(time.Now().Add(2*time.Hour), time.Hour))
	_, ok := r.Get(readyID)
	assert.False(t, ok)
	_, ok = r.Get(endedID)
	assert.False(t, ok)
	_, ok = r.Get(liveID)
	assert.True(t, ok)

	for _, c := range []*fakeClient{readyC, endedC} {
		_, disconnects := c.counts()
		assert.Equal(t, 1, disconnects)
	}
	_, disconnects := liveC.counts()
	assert.Zero(t, disconnects)
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	r := NewRegistry(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
