package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type fakeChannel struct {
	queue string
	msg   amqp.Publishing
	err   error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	c.queue = key
	c.msg = msg
	return c.err
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, queue: "notification_queue", timeout: time.Second}

	err := p.Publish(context.Background(), domain.NotificationMessage{
		Type: domain.NotificationPlanPublished,
		To:   "dana@example.com",
		Data: domain.PlanPublishedMailData{FullName: "Dana", PlanDate: "2025-06-01", EventCount: 3, JobCount: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "notification_queue", ch.queue)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, domain.NotificationPlanPublished, ch.msg.Type)

	var env envelope
	require.NoError(t, json.Unmarshal(ch.msg.Body, &env))
	assert.Equal(t, "dana@example.com", env.To)
	assert.JSONEq(t, `{"fullName":"Dana","planDate":"2025-06-01","eventCount":3,"jobCount":2}`, string(env.Data))
}

func TestAMQPPublisher_PropagatesError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := &AMQPPublisher{ch: ch, queue: "q", timeout: time.Second}

	err := p.Publish(context.Background(), domain.NotificationMessage{Type: domain.NotificationCrewAssigned})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func encode(t *testing.T, msg domain.NotificationMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer("dispatch@example.com", "")
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		msg     domain.NotificationMessage
		subject string
	}{
		{
			name: "plan published",
			msg: domain.NotificationMessage{
				Type: domain.NotificationPlanPublished,
				To:   "dana@example.com",
				Data: domain.PlanPublishedMailData{FullName: "Dana", PlanDate: "2025-06-01", EventCount: 2, JobCount: 1},
			},
			subject: "Your day plan has been published",
		},
		{
			name: "crew assigned",
			msg: domain.NotificationMessage{
				Type: domain.NotificationCrewAssigned,
				To:   "dana@example.com",
				Data: domain.CrewAssignedMailData{FullName: "Dana", JobNumber: "JOB-0001", JobTitle: "Boiler", ScheduledStart: &start},
			},
			subject: "You have been assigned to a job",
		},
		{
			name: "crew assigned to unscheduled job",
			msg: domain.NotificationMessage{
				Type: domain.NotificationCrewAssigned,
				To:   "dana@example.com",
				Data: domain.CrewAssignedMailData{FullName: "Dana", JobNumber: "JOB-0002", JobTitle: "Survey"},
			},
			subject: "You have been assigned to a job",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := r.Render(encode(t, tt.msg))
			require.NoError(t, err)

			rcpts, err := msg.GetRecipients()
			require.NoError(t, err)
			assert.Equal(t, []string{"dana@example.com"}, rcpts)
			assert.Equal(t, []string{tt.subject}, msg.GetGenHeader(mail.HeaderSubject))
		})
	}
}

func TestRenderer_RejectsBadMessages(t *testing.T) {
	r, err := NewRenderer("dispatch@example.com", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		body []byte
	}{
		{name: "not json", body: []byte("{")},
		{name: "unknown type", body: encode(t, domain.NotificationMessage{Type: "shift_swapped", To: "a@example.com"})},
		{name: "bad recipient", body: encode(t, domain.NotificationMessage{Type: domain.NotificationPlanPublished, To: "not an address", Data: domain.PlanPublishedMailData{}})},
		{name: "payload mismatch", body: []byte(`{"type":"plan_published","to":"a@example.com","data":{"eventCount":"three"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.body)
			assert.Error(t, err)
		})
	}
}

type ack struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu   sync.Mutex
	acks []ack
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ack{tag: tag, ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ack{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeSender struct {
	fail error
	sent int
}

func (s *fakeSender) DialAndSend(messages ...*mail.Msg) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent += len(messages)
	return nil
}

func TestWorker_Run(t *testing.T) {
	r, err := NewRenderer("dispatch@example.com", "")
	require.NoError(t, err)

	good := encode(t, domain.NotificationMessage{
		Type: domain.NotificationPlanPublished,
		To:   "dana@example.com",
		Data: domain.PlanPublishedMailData{FullName: "Dana", PlanDate: "2025-06-01"},
	})

	t.Run("acks sent and drops malformed", func(t *testing.T) {
		acker := &fakeAcknowledger{}
		sender := &fakeSender{}
		deliveries := make(chan amqp.Delivery, 2)
		deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: good}
		deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("garbage")}
		close(deliveries)

		NewWorker(r, sender, zap.NewNop()).Run(context.Background(), deliveries)

		assert.Equal(t, 1, sender.sent)
		assert.Equal(t, []ack{{tag: 1, ack: true}, {tag: 2, requeue: false}}, acker.acks)
	})

	t.Run("requeues on send failure", func(t *testing.T) {
		acker := &fakeAcknowledger{}
		deliveries := make(chan amqp.Delivery, 1)
		deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 7, Body: good}
		close(deliveries)

		start := time.Now()
		NewWorker(r, &fakeSender{fail: errors.New("smtp down")}, zap.NewNop(), WithRetryDelay(50*time.Millisecond)).
			Run(context.Background(), deliveries)

		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Equal(t, []ack{{tag: 7, requeue: true}}, acker.acks)
	})

	t.Run("drops after max deliveries", func(t *testing.T) {
		acker := &fakeAcknowledger{}
		deliveries := make(chan amqp.Delivery, 2)
		deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 8, Body: good, Headers: amqp.Table{"x-delivery-count": int64(2)}}
		deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 9, Body: good, Headers: amqp.Table{"x-delivery-count": int64(1)}}
		close(deliveries)

		NewWorker(r, &fakeSender{fail: errors.New("smtp down")}, zap.NewNop(), WithRetryDelay(0), WithMaxDeliveries(3)).
			Run(context.Background(), deliveries)

		assert.Equal(t, []ack{{tag: 8, requeue: false}, {tag: 9, requeue: true}}, acker.acks)
	})

	t.Run("requeues without delay once cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		acker := &fakeAcknowledger{}
		w := NewWorker(r, &fakeSender{fail: errors.New("smtp down")}, zap.NewNop(), WithRetryDelay(time.Hour))

		cancel()
		w.handle(ctx, amqp.Delivery{Acknowledger: acker, DeliveryTag: 10, Body: good})

		assert.Equal(t, []ack{{tag: 10, requeue: true}}, acker.acks)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			NewWorker(r, &fakeSender{}, zap.NewNop()).Run(ctx, make(chan amqp.Delivery))
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
