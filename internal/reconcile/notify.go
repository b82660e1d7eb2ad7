package reconcile

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// EventFailed is published when a run finishes with failed payments.
const EventFailed = "reconcile.failed"

type Notifier interface {
	NotifyFailed(ctx context.Context, report Report) error
}

type failedEvent struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Processed  int             `json:"processed"`
	Failures   []failedPayment `json:"failures"`
}

type failedPayment struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// RedisNotifier publishes failed runs on a Redis pub/sub channel.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	now     func() time.Time
}

func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (n *RedisNotifier) NotifyFailed(ctx context.Context, report Report) error {
	event := failedEvent{
		Event:      EventFailed,
		OccurredAt: n.now(),
		Processed:  report.Processed,
		Failures:   make([]failedPayment, 0, len(report.Failures)),
	}
	for _, failure := range report.Failures {
		event.Failures = append(event.Failures, failedPayment{
			PaymentID: failure.PaymentID.String(),
			Status:    string(failure.Status),
			Error:     failure.Err.Error(),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}
