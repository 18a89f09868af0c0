package rabbit

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/config"
	"github.com/adilzhm/order-service/internal/pkg/retry"
)

// Handler processes one delivery body. A non-nil error is logged by the
// consumer but the delivery is acknowledged either way: malformed or
// unprocessable payment events are never requeued, they would loop forever.
type Handler func(ctx context.Context, body []byte) error

// Consumer is the long-lived subscriber for payment outcomes. It binds a
// durable queue to the payments topic exchange and keeps reconnecting with
// capped backoff until the context is cancelled. The current delivery is
// always finished before Run returns.
type Consumer struct {
	cfg     config.Rabbit
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(cfg config.Rabbit, handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	err := retry.Forever(ctx, time.Second, 30*time.Second, func() error {
		err := c.consume(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("consumer disconnected, reconnecting", zap.Error(err))
		return err
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// consume holds one connection for its lifetime: declare the topology, then
// process deliveries until the channel dies or the context is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.cfg.PaymentsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(c.cfg.PaymentQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, c.cfg.PaymentKey, c.cfg.PaymentsExchange, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("listening for payment events",
		zap.String("exchange", c.cfg.PaymentsExchange),
		zap.String("queue", q.Name),
		zap.String("routing_key", c.cfg.PaymentKey),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := c.handler(ctx, d.Body); err != nil {
				c.logger.Error("payment event handling failed, acking anyway",
					zap.Error(err),
					zap.String("message_id", d.MessageId),
				)
			}
			if err := d.Ack(false); err != nil {
				c.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}
