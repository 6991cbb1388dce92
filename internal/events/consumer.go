package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"chemdist/backend/internal/domain"
)

var ErrMalformedEvent = errors.New("malformed order event")

// StockApplier is the part of the service the consumer drives.
type StockApplier interface {
	ApplyStockDecrement(ctx context.Context, req domain.StockDecrementRequest) domain.StockDecrementResult
}

// acknowledger is the settle side of an amqp.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	stock   StockApplier
}

func Dial(url string, queue string, stock StockApplier) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	// one unacked message at a time keeps decrements sequential per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &Consumer{conn: conn, channel: channel, queue: queue, stock: stock}, nil
}

// Run consumes until ctx is cancelled or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}
	log.Printf("[events] listening on queue %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, msg.Body, msg)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, body []byte, msg acknowledger) {
	_, err := HandleMessage(ctx, c.stock, body)
	if errors.Is(err, ErrMalformedEvent) {
		log.Printf("[events] WARN: dropping message: %v", err)
		if err := msg.Nack(false, false); err != nil {
			log.Printf("[events] nack failed: %v", err)
		}
		return
	}
	// Partial stock failures are acked too: redelivery could double-apply
	// the updates that did succeed.
	if err := msg.Ack(false); err != nil {
		log.Printf("[events] ack failed: %v", err)
	}
}

func (c *Consumer) Close() error {
	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

// HandleMessage decodes an order-completed event and runs the decrement.
func HandleMessage(ctx context.Context, stock StockApplier, body []byte) (domain.StockDecrementResult, error) {
	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.StockDecrementResult{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(event.OrderID) == "" {
		return domain.StockDecrementResult{}, fmt.Errorf("%w: order_id is required", ErrMalformedEvent)
	}

	res := stock.ApplyStockDecrement(ctx, domain.StockDecrementRequest{
		OrderID:        event.OrderID,
		PreviousStatus: event.PreviousStatus,
	})
	if res.Success {
		log.Printf("[events] order %s stock applied", event.OrderID)
	} else {
		log.Printf("[events] WARN: order %s stock applied with errors: %s", event.OrderID, res.Error)
	}
	return res, nil
}
