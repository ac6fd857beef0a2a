package mq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"actions-service/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Consumer binds a durable queue to one routing key on the events exchange
// and dispatches deliveries to a handler with manual acknowledgement.
type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger

	// optional redelivery cap, nil means requeue forever
	retries    *util.RetryCounter
	maxRetries int64
}

func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetRetryLimit caps how many times a failing delivery is requeued before it
// is dropped. Without a cap a poison message cycles through the queue forever.
func (c *Consumer) SetRetryLimit(counter *util.RetryCounter, max int64) {
	c.retries = counter
	c.maxRetries = max
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks delivering messages to the handler. Handler success
// acks the message; handler error or panic nacks it back onto the queue.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"actions-service",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handleDelivery(msg)
	}
	return nil
}

func (c *Consumer) handleDelivery(msg amqp091.Delivery) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", r),
			)
			c.requeueOrDrop(ctx, msg)
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		c.logger.Error("Handler error",
			zap.String("routing_key", c.routingKey),
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		c.requeueOrDrop(ctx, msg)
		return
	}

	if c.retries != nil {
		_ = c.retries.Reset(ctx, util.FormatRetryKey(c.queue.Name, fingerprint(msg)))
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", zap.Error(err))
	}
}

// requeueOrDrop nacks a failed delivery back onto the queue unless it already
// exhausted the retry cap, in which case it is acked away.
func (c *Consumer) requeueOrDrop(ctx context.Context, msg amqp091.Delivery) {
	if c.retries != nil {
		key := util.FormatRetryKey(c.queue.Name, fingerprint(msg))
		count, err := c.retries.IncrementAndGet(ctx, key)
		if err == nil && count > c.maxRetries {
			c.logger.Error("Dropping message after repeated failures",
				zap.String("queue", c.queue.Name),
				zap.Int64("attempts", count),
			)
			if err := msg.Ack(false); err != nil {
				c.logger.Error("Failed to ack dropped message", zap.Error(err))
			}
			return
		}
	}
	if err := msg.Nack(false, true); err != nil {
		c.logger.Error("Failed to nack message", zap.Error(err))
	}
}

func fingerprint(msg amqp091.Delivery) string {
	if msg.MessageId != "" {
		return msg.MessageId
	}
	sum := sha256.Sum256(msg.Body)
	return hex.EncodeToString(sum[:8])
}
