package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marigunting/presenced/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const offlineQueueName = "presence.offline"

// PushQueue carries offline notices to the notifier worker over RabbitMQ.
// Unlike the realtime channel this path is durable: a notice enqueued while
// the worker is down is still delivered when it comes back.
type PushQueue struct {
	ch     *amqp.Channel
	logger zerolog.Logger
}

func NewPushQueue(conn *amqp.Connection, logger zerolog.Logger) (*PushQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		offlineQueueName, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &PushQueue{
		ch:     ch,
		logger: logger.With().Str("component", "push_queue").Logger(),
	}, nil
}

func (q *PushQueue) EnqueueOfflineNotice(ctx context.Context, notice models.OfflineNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}

	err = q.ch.PublishWithContext(ctx,
		"",               // exchange
		offlineQueueName, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}

	return nil
}

// Consume delivers each offline notice to the handler until ctx is
// cancelled. Notices the handler rejects are requeued once, then dropped.
func (q *PushQueue) Consume(ctx context.Context, handler func(context.Context, models.OfflineNotice) error) error {
	msgs, err := q.ch.ConsumeWithContext(ctx,
		offlineQueueName, // queue
		"",               // consumer
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	for d := range msgs {
		var notice models.OfflineNotice
		if err := json.Unmarshal(d.Body, &notice); err != nil {
			q.logger.Warn().Err(err).Msg("dropping malformed offline notice")
			d.Nack(false, false)
			continue
		}

		if err := handler(ctx, notice); err != nil {
			q.logger.Warn().Err(err).Str("actor_id", notice.ActorID.String()).Msg("offline notice handler failed")
			d.Nack(false, !d.Redelivered)
			continue
		}

		d.Ack(false)
	}

	return nil
}

func (q *PushQueue) Close() {
	_ = q.ch.Close()
}
