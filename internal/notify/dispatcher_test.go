package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/pkg/logger"
)

type recordingGateway struct {
	mu       sync.Mutex
	received []Payload
	failures int32 // remaining calls that fail
	calls    atomic.Int32
}

func (g *recordingGateway) Notify(_ context.Context, p Payload) error {
	g.calls.Add(1)
	if atomic.AddInt32(&g.failures, -1) >= 0 {
		return errors.New("gateway unavailable")
	}
	g.mu.Lock()
	g.received = append(g.received, p)
	g.mu.Unlock()
	return nil
}

func payload(priority entity.Priority) Payload {
	return Payload{AlertID: id.New(), Type: entity.AlertLowStock, Priority: priority, Message: "low"}
}

func stop(t *testing.T, d *Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_DeliversQueuedPayloads(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(gw, DispatcherConfig{QueueSize: 8, Workers: 2, MaxAttempts: 1}, logger.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Enqueue(context.Background(), payload(entity.PriorityHigh)))
	}
	assert.Equal(t, 3, d.Stats().QueueDepth)

	d.Start(context.Background())
	stop(t, d)

	st := d.Stats()
	assert.Equal(t, uint64(3), st.Delivered)
	assert.Zero(t, st.Failed)
	assert.Zero(t, st.QueueDepth)
	assert.Len(t, gw.received, 3)
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	gw := &recordingGateway{failures: 2}
	d := NewDispatcher(gw, DispatcherConfig{QueueSize: 1, Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, logger.NewNop())

	d.Start(context.Background())
	require.NoError(t, d.Enqueue(context.Background(), payload(entity.PriorityCritical)))
	stop(t, d)

	st := d.Stats()
	assert.Equal(t, uint64(1), st.Delivered)
	assert.Equal(t, uint64(2), st.Retries)
	assert.Equal(t, int32(3), gw.calls.Load())
}

// flakySender fails its first n sends.
type flakySender struct {
	recordingSender
	failures atomic.Int32
}

func (s *flakySender) Send(ctx context.Context, ch Channel, p Payload) error {
	if s.failures.Add(-1) >= 0 {
		s.mu.Lock()
		s.sent = append(s.sent, ch)
		s.mu.Unlock()
		return errors.New("smtp down")
	}
	return s.recordingSender.Send(ctx, ch, p)
}

func TestDispatcher_RetriesOnlyFailedChannels(t *testing.T) {
	ok := &recordingSender{}
	email := &flakySender{}
	email.failures.Store(1)
	r := NewRouter().
		Register(ok, ChannelPush, ChannelInApp).
		Register(email, ChannelEmail)

	d := NewDispatcher(r, DispatcherConfig{QueueSize: 1, Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, logger.NewNop())
	d.Start(context.Background())
	require.NoError(t, d.Enqueue(context.Background(), payload(entity.PriorityHigh)))
	stop(t, d)

	assert.Equal(t, []Channel{ChannelPush, ChannelInApp}, ok.sent, "delivered channels are not resent")
	assert.Equal(t, []Channel{ChannelEmail, ChannelEmail}, email.sent)
	st := d.Stats()
	assert.Equal(t, uint64(1), st.Delivered)
	assert.Equal(t, uint64(1), st.Retries)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	gw := &recordingGateway{failures: 100}
	d := NewDispatcher(gw, DispatcherConfig{QueueSize: 1, Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond}, logger.NewNop())

	d.Start(context.Background())
	require.NoError(t, d.Enqueue(context.Background(), payload(entity.PriorityLow)))
	stop(t, d)

	st := d.Stats()
	assert.Zero(t, st.Delivered)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, int32(2), gw.calls.Load())
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	d := NewDispatcher(&recordingGateway{}, DispatcherConfig{QueueSize: 1, Workers: 1}, logger.NewNop())

	require.NoError(t, d.Enqueue(context.Background(), payload(entity.PriorityLow)))
	err := d.Enqueue(context.Background(), payload(entity.PriorityLow))
	assert.ErrorIs(t, err, ErrQueueFull)

	st := d.Stats()
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.Capacity)
	assert.Equal(t, uint64(1), st.Dropped)

	d.Start(context.Background())
	stop(t, d)

	err = d.Enqueue(context.Background(), payload(entity.PriorityLow))
	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, d.Stop(context.Background()))
}
