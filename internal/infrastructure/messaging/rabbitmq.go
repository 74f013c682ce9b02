package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for normalized payment events.
const (
	RoutingKeyPaymentConfirmed = "payment.confirmed"
	RoutingKeyPaymentFailed    = "payment.failed"
)

var ErrPublishRejected = errors.New("broker rejected the message")

// dial opens a connection and a channel and declares the durable topic exchange.
func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll(conn, ch)
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

func closeAll(conn *amqp.Connection, ch *amqp.Channel) {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func isOpen(conn *amqp.Connection, ch *amqp.Channel) bool {
	return conn != nil && ch != nil && !conn.IsClosed() && !ch.IsClosed()
}

// Publisher publishes on a channel in confirm mode. A lost connection is
// re-dialled on the next publish.
type Publisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	ch       *amqp.Channel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, ch, err := dial(p.url, p.exchange)
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		closeAll(conn, ch)
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !isOpen(p.conn, p.ch) {
		closeAll(p.conn, p.ch)
		p.conn, p.ch = nil, nil
		if err := p.connect(); err != nil {
			return nil, err
		}
	}
	return p.ch, nil
}

// PublishJSON publishes v as a persistent JSON message and returns once the
// broker has confirmed it.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrPublishRejected, key)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Consumer reads a durable queue bound to the given routing keys.
type Consumer struct {
	mu       sync.Mutex
	url      string
	exchange string
	queue    string
	keys     []string
	conn     *amqp.Connection
	ch       *amqp.Channel
}

func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	c := &Consumer{url: url, exchange: exchange, queue: queue, keys: keys}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) connect() error {
	conn, ch, err := dial(c.url, c.exchange)
	if err != nil {
		return err
	}
	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		closeAll(conn, ch)
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range c.keys {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			closeAll(conn, ch)
			return fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	// one unacked settlement at a time per consumer
	if err := ch.Qos(1, 0, false); err != nil {
		closeAll(conn, ch)
		return fmt.Errorf("set qos: %w", err)
	}
	c.conn, c.ch, c.queue = conn, ch, q.Name
	return nil
}

// Deliveries subscribes to the queue, re-dialling first when the previous
// connection or channel was closed.
func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !isOpen(c.conn, c.ch) {
		closeAll(c.conn, c.ch)
		c.conn, c.ch = nil, nil
		if err := c.connect(); err != nil {
			return nil, err
		}
	}
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
