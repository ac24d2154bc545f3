package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/pkg/logger"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// ChannelsFor maps alert priority to delivery channels.
func ChannelsFor(p entity.Priority) []Channel {
	switch p {
	case entity.PriorityCritical:
		return []Channel{ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp}
	case entity.PriorityHigh:
		return []Channel{ChannelEmail, ChannelPush, ChannelInApp}
	case entity.PriorityMedium:
		return []Channel{ChannelEmail, ChannelInApp}
	default:
		return []Channel{ChannelInApp}
	}
}

// Sender delivers a payload over one channel.
type Sender interface {
	Send(ctx context.Context, ch Channel, p Payload) error
}

// Router is a Gateway that fans a payload out to the senders registered for
// the channels its priority selects. Channels without a sender are skipped.
type Router struct {
	senders map[Channel]Sender
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{senders: make(map[Channel]Sender)}
}

// Register binds a sender to channels. Call before the router is used.
func (r *Router) Register(s Sender, channels ...Channel) *Router {
	for _, ch := range channels {
		r.senders[ch] = s
	}
	return r
}

// DeliveryError lists the channels a Notify call could not deliver to.
type DeliveryError struct {
	Failed []Channel
	Err    error
}

func (e *DeliveryError) Error() string { return e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Notify implements Gateway. A payload that already names its channels is
// sent on those only; otherwise the priority selects them. Every channel is
// attempted, and failures come back as a *DeliveryError.
func (r *Router) Notify(ctx context.Context, p Payload) error {
	channels := p.Channels
	if len(channels) == 0 {
		channels = ChannelsFor(p.Priority)
	}
	p.Channels = channels

	var (
		failed []Channel
		errs   []error
	)
	for _, ch := range channels {
		s, ok := r.senders[ch]
		if !ok {
			continue
		}
		if err := s.Send(ctx, ch, p); err != nil {
			failed = append(failed, ch)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &DeliveryError{Failed: failed, Err: errors.Join(errs...)}
}

// LogSender records deliveries in the log. Used where no real transport exists.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a sender writing through log.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("notify")}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, ch Channel, p Payload) error {
	s.log.WithContext(ctx).Infow("alert notification",
		"channel", ch,
		"alert_id", p.AlertID,
		"type", p.Type,
		"priority", p.Priority,
		"product_id", p.ProductID,
		"location_id", p.LocationID,
		"current_value", p.CurrentValue.String(),
		"threshold", p.Threshold.String(),
	)
	return nil
}

// WebhookSender posts the payload as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a webhook sender. A nil client gets a 5s timeout.
func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &WebhookSender{url: url, client: client}
}

type webhookBody struct {
	Channel Channel `json:"channel"`
	Payload
}

// Send implements Sender. Any non-2xx status is an error.
func (s *WebhookSender) Send(ctx context.Context, ch Channel, p Payload) error {
	body, err := json.Marshal(webhookBody{Channel: ch, Payload: p})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rid := appctx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
