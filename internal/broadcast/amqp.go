// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Meta describes a published event.
type Meta struct {
	// Request correlation id; the conversation id for chat traffic.
	CorrelationID *string `json:"correlation_id,omitempty"`
	ID            string  `json:"id"`
	// Emitting service and version.
	Producer *string   `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
	// Event name, e.g. chat.message.
	Type string `json:"type"`
}

// Envelope wraps a message for the broker.
type Envelope struct {
	Meta Meta    `json:"meta"`
	Data Message `json:"data"`
}

// RoutingKey returns "<channel>.<type>" with the type lowercased.
func RoutingKey(channel string, t Type) string {
	return channel + "." + strings.ToLower(string(t))
}

// NewEnvelope wraps msg for channel.
func NewEnvelope(channel, producer string, msg Message) Envelope {
	env := Envelope{
		Meta: Meta{
			ID:   msg.ID,
			Time: msg.Timestamp,
			Type: RoutingKey(channel, msg.Type),
		},
		Data: msg,
	}
	if env.Meta.ID == "" {
		env.Meta.ID = uuid.NewString()
	}
	if env.Meta.Time.IsZero() {
		env.Meta.Time = time.Now().UTC()
	}
	if msg.ConversationID != "" {
		cid := msg.ConversationID
		env.Meta.CorrelationID = &cid
	}
	if producer != "" {
		env.Meta.Producer = &producer
	}
	return env
}

// =============================================================================
// CONNECTION
// =============================================================================

// ConnectionOptions configures DialWithRetry.
type ConnectionOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger
}

// MaxDelay caps the backoff between dial attempts.
const MaxDelay = 60 * time.Second

// DialWithRetry connects to RabbitMQ with exponential backoff, giving up
// when ctx is cancelled.
func DialWithRetry(ctx context.Context, cfg ConnectionOptions) (*amqp091.Connection, error) {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var lastErr error
	for i := 1; i <= cfg.RetryAttempts; i++ {
		conn, err := amqp091.Dial(cfg.URL)
		if err == nil {
			if i > 1 {
				cfg.Logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == cfg.RetryAttempts {
			break
		}

		sleep := backoff(cfg.Delay, i)
		cfg.Logger.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w",
		cfg.RetryAttempts, lastErr)
}

// backoff returns delay doubled per prior attempt, capped at MaxDelay.
func backoff(delay time.Duration, attempt int) time.Duration {
	sleep := delay
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= MaxDelay {
			return MaxDelay
		}
	}
	return sleep
}

// =============================================================================
// AMQP PUBLISHER
// =============================================================================

// AMQPPublisher publishes envelopes to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	producer string
	log      *slog.Logger
}

// NewAMQPPublisher declares exchange on conn and returns a publisher that
// owns conn.
func NewAMQPPublisher(conn *amqp091.Connection, exchange, producer string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		producer: producer,
		log:      logger.With("component", "broadcast.amqp"),
	}, nil
}

// Publish sends msg with routing key RoutingKey(channel, msg.Type) and waits
// for the broker to confirm it.
func (r *AMQPPublisher) Publish(ctx context.Context, channel string, msg Message) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return err
	}

	env := NewEnvelope(channel, r.producer, msg)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	cid := uuid.NewString()
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}
	key := RoutingKey(channel, msg.Type)

	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: cid,
			Timestamp:     env.Meta.Time,
			Type:          env.Meta.Type,
			Body:          body,
		},
	)
	if err != nil {
		return err
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("broker nacked %s", key)
	}

	r.log.Debug("published", slog.String("key", key), slog.String("exchange", r.exchange))
	return nil
}

func (r *AMQPPublisher) Close() error {
	return r.conn.Close()
}
