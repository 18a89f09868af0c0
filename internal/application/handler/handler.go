package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/config"
	"github.com/adilzhm/order-service/internal/domain"
	"github.com/adilzhm/order-service/internal/observability"
	"github.com/adilzhm/order-service/internal/pkg/retry"
)

//go:generate mockgen -source internal/application/handler/handler.go -destination=internal/application/handler/mock_test.go -package=handler

var (
	ErrBadEvent    = errors.New("bad event")
	ErrUpdate      = errors.New("status update failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

type Storage interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

// Handler drives the payment-outcome state machine for each delivered
// message. Every error here is terminal for the message: the consumer
// acknowledges regardless, so failures are logged and never requeued or
// dead-lettered.
type Handler struct {
	storage     Storage
	breaker     brk
	logger      *zap.Logger
	metrics     observability.Metrics
	retryPolicy config.Retry
}

func NewHandler(storage Storage, breaker brk, retryPolicy config.Retry, logger *zap.Logger, metrics observability.Metrics) *Handler {
	return &Handler{
		storage:     storage,
		breaker:     breaker,
		logger:      logger,
		metrics:     metrics,
		retryPolicy: retryPolicy,
	}
}

// Handle is called by the consumer for a single delivery body.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	start := time.Now()
	err := h.handle(ctx, body)
	h.metrics.ObserveConsume(float64(time.Since(start).Microseconds())/1000.0, err == nil)
	return err
}

func (h *Handler) handle(ctx context.Context, body []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Error("bad event json", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBadEvent, err)
	}

	// Unknown tags are a no-op, not an error.
	if env.EventType != domain.EventPaymentProcessed {
		h.logger.Debug("ignoring event", zap.String("event_type", env.EventType))
		return nil
	}

	var payload domain.PaymentProcessedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		h.logger.Error("bad PaymentProcessed payload",
			zap.String("event_id", env.EventID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if payload.OrderID == "" || payload.PaymentStatus == "" {
		h.logger.Error("PaymentProcessed payload missing order_id or payment_status",
			zap.String("event_id", env.EventID),
		)
		return ErrBadEvent
	}

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open, skipping event",
			zap.Error(err),
			zap.String("order_id", payload.OrderID),
		)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	target := domain.StatusForPayment(payload.PaymentStatus)

	order, err := h.storage.GetByID(ctx, payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// The order may not be committed yet or the id is stale. No
			// retry-with-delay here, the event is dropped after this ack.
			h.logger.Warn("order not found for payment event",
				zap.String("order_id", payload.OrderID),
			)
			return nil
		case errors.Is(err, domain.ErrInvalidID):
			h.logger.Warn("payment event carries malformed order id",
				zap.String("order_id", payload.OrderID),
			)
			return ErrBadEvent
		default:
			h.breaker.Failure()
			h.logger.Error("order lookup failed",
				zap.String("order_id", payload.OrderID),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrUpdate, err)
		}
	}

	// One-shot transitions: duplicates and late events for an already
	// decided order are accepted and ignored.
	if !domain.CanTransition(order.Status, target) {
		h.logger.Info("order already decided, ignoring payment event",
			zap.String("order_id", order.OrderID),
			zap.String("status", string(order.Status)),
			zap.String("payment_status", payload.PaymentStatus),
		)
		return nil
	}

	if err := retry.Do(ctx, h.retryPolicy, func() error {
		return h.storage.UpdateStatus(ctx, order.OrderID, target)
	}); err != nil {
		h.breaker.Failure()
		h.logger.Error("status update failed after retries",
			zap.String("order_id", order.OrderID),
			zap.String("target_status", string(target)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUpdate, err)
	}

	h.breaker.Success()
	h.logger.Info("order status updated from payment event",
		zap.String("order_id", order.OrderID),
		zap.String("status", string(target)),
		zap.String("payment_status", payload.PaymentStatus),
	)
	return nil
}
