package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/pkg/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Channel
	err  error
}

func (s *recordingSender) Send(_ context.Context, ch Channel, _ Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ch)
	return s.err
}

func TestChannelsFor(t *testing.T) {
	assert.Equal(t, []Channel{ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp}, ChannelsFor(entity.PriorityCritical))
	assert.Equal(t, []Channel{ChannelEmail, ChannelPush, ChannelInApp}, ChannelsFor(entity.PriorityHigh))
	assert.Equal(t, []Channel{ChannelEmail, ChannelInApp}, ChannelsFor(entity.PriorityMedium))
	assert.Equal(t, []Channel{ChannelInApp}, ChannelsFor(entity.PriorityLow))
}

func TestRouter_FansOutByPriority(t *testing.T) {
	s := &recordingSender{}
	r := NewRouter().Register(s, ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp)

	require.NoError(t, r.Notify(context.Background(), payload(entity.PriorityCritical)))
	assert.Len(t, s.sent, 4)

	s.sent = nil
	require.NoError(t, r.Notify(context.Background(), payload(entity.PriorityLow)))
	assert.Equal(t, []Channel{ChannelInApp}, s.sent)
}

func TestRouter_SkipsUnregisteredAndJoinsErrors(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("smtp down")}
	r := NewRouter().
		Register(ok, ChannelInApp).
		Register(bad, ChannelEmail).
		Register(NewLogSender(logger.NewNop()), ChannelPush)

	err := r.Notify(context.Background(), payload(entity.PriorityHigh))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email: smtp down")
	assert.Equal(t, []Channel{ChannelInApp}, ok.sent)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []Channel{ChannelEmail}, de.Failed)
}

func TestRouter_HonoursPresetChannels(t *testing.T) {
	s := &recordingSender{}
	r := NewRouter().Register(s, ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp)

	p := payload(entity.PriorityCritical)
	p.Channels = []Channel{ChannelSMS}
	require.NoError(t, r.Notify(context.Background(), p))
	assert.Equal(t, []Channel{ChannelSMS}, s.sent)
}

func TestWebhookSender(t *testing.T) {
	var got map[string]any
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, srv.Client())
	p := payload(entity.PriorityMedium)

	require.NoError(t, s.Send(context.Background(), ChannelEmail, p))
	assert.Equal(t, "email", got["channel"])
	assert.Equal(t, p.AlertID.String(), got["alertId"])
	assert.Equal(t, "MEDIUM", got["priority"])

	status = http.StatusInternalServerError
	assert.Error(t, s.Send(context.Background(), ChannelEmail, p))
}
