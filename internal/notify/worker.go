package notify

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	DefaultRetryDelay    = 30 * time.Second
	DefaultMaxDeliveries = 10
)

// Sender delivers a rendered message, normally *mail.Client.
type Sender interface {
	DialAndSend(messages ...*mail.Msg) error
}

// Worker consumes queued notifications and mails them.
type Worker struct {
	renderer      *Renderer
	sender        Sender
	logger        *zap.Logger
	retryDelay    time.Duration
	maxDeliveries int64
}

type WorkerOption func(w *Worker)

// WithRetryDelay sets how long a failed message is held before it is requeued.
func WithRetryDelay(d time.Duration) WorkerOption {
	return func(w *Worker) { w.retryDelay = d }
}

// WithMaxDeliveries caps redeliveries; 0 disables the cap.
func WithMaxDeliveries(n int64) WorkerOption {
	return func(w *Worker) { w.maxDeliveries = n }
}

func NewWorker(renderer *Renderer, sender Sender, logger *zap.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		renderer:      renderer,
		sender:        sender,
		logger:        logger,
		retryDelay:    DefaultRetryDelay,
		maxDeliveries: DefaultMaxDeliveries,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run handles deliveries until ctx is done or the channel closes. Messages
// that cannot be rendered are dropped; send failures are requeued after the
// retry delay until the delivery cap is reached.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	msg, err := w.renderer.Render(d.Body)
	if err != nil {
		w.logger.Error("dropping notification", zap.String("type", d.Type), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := w.sender.DialAndSend(msg); err != nil {
		// x-delivery-count counts earlier deliveries, so this one is count+1
		count := deliveryCount(d) + 1
		if w.maxDeliveries > 0 && count >= w.maxDeliveries {
			w.logger.Error("giving up on notification",
				zap.String("type", d.Type),
				zap.Int64("deliveries", count),
				zap.Error(err),
			)
			_ = d.Nack(false, false)
			return
		}

		w.logger.Warn("failed to send notification, requeueing",
			zap.String("type", d.Type),
			zap.Int64("deliveries", count),
			zap.Duration("delay", w.retryDelay),
			zap.Error(err),
		)
		w.wait(ctx)
		_ = d.Nack(false, true)
		return
	}

	w.logger.Info("notification sent", zap.String("type", d.Type))
	_ = d.Ack(false)
}

// wait holds the unacked message so the broker does not redeliver it at once.
func (w *Worker) wait(ctx context.Context) {
	if w.retryDelay <= 0 {
		return
	}
	timer := time.NewTimer(w.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// deliveryCount reads the quorum-queue redelivery header, 0 when absent.
func deliveryCount(d amqp.Delivery) int64 {
	switch v := d.Headers["x-delivery-count"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}
