package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/domain"
)

// Publisher emits domain events to a durable topic exchange. The connection is
// established lazily on first publish and reused afterwards; after a transport
// failure the next publish redials. "Published" means accepted by the broker,
// not handled downstream. A publish while the broker is unreachable fails
// explicitly, it never drops the event on the floor.
type Publisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url, exchange string, logger *zap.Logger) *Publisher {
	return &Publisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
	}
}

// channel returns the current channel, dialing and declaring the exchange if
// needed. Callers hold no lock; the lock lives here.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", p.exchange, err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish wraps the payload in an envelope with a fresh event id and publishes
// it persistently under the routing key derived from the event type.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}
	return p.publishEnvelope(ctx, env)
}

func (p *Publisher) publishEnvelope(ctx context.Context, env domain.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, domain.RoutingKey(env.EventType), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.Timestamp,
		Body:         body,
	})
	if err != nil {
		// Stale channel, force a redial on the next call.
		p.drop()
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	p.logger.Info("event published",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID),
		zap.String("routing_key", domain.RoutingKey(env.EventType)),
	)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.conn = nil
	}
	return err
}
