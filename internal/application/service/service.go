package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/domain"
	"github.com/adilzhm/order-service/internal/observability"
	"github.com/adilzhm/order-service/internal/pricing"
)

//go:generate mockgen -source internal/application/service/service.go -destination=internal/application/service/mock_test.go -package=service

var ErrEmptyOrder = errors.New("order must have at least one item")

type Cache interface {
	Get(ctx context.Context, id string) (*domain.Order, bool)
	Set(ctx context.Context, order *domain.Order)
}

type Storage interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type CreateOrderInput struct {
	CustomerID      string
	ShippingAddress string
	Items           []CreateOrderItem
}

type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

// Service is the order lifecycle coordinator: it ties the store, the cache,
// the pricing provider and the event publisher into the two entry points,
// creating orders and serving reads.
type Service struct {
	cache     Cache
	storage   Storage
	publisher Publisher
	prices    pricing.Provider
	logger    *zap.Logger
	metrics   observability.Metrics
}

func NewService(
	cache Cache,
	storage Storage,
	publisher Publisher,
	prices pricing.Provider,
	logger *zap.Logger,
	metrics observability.Metrics,
) *Service {
	return &Service{
		cache:     cache,
		storage:   storage,
		publisher: publisher,
		prices:    prices,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateOrder resolves prices, persists the aggregate and announces it.
// The store write and the publish are deliberately fail-closed: if the publish
// fails after the commit, the error is surfaced to the caller, since
// downstream systems would otherwise never learn the order exists. The order
// stays persisted in that case.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, CreateStats, error) {
	var st CreateStats

	if len(in.Items) == 0 {
		return nil, st, ErrEmptyOrder
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		price, err := s.prices.ResolvePrice(ctx, it.ProductID)
		if err != nil {
			return nil, st, fmt.Errorf("resolve price for %s: %w", it.ProductID, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
		})
	}

	order := &domain.Order{
		CustomerID:      in.CustomerID,
		ShippingAddress: in.ShippingAddress,
		Status:          domain.StatusPending,
		Items:           items,
		TotalAmount:     domain.Total(items),
	}

	t0 := time.Now()
	if err := s.storage.Create(ctx, order); err != nil {
		s.logger.Error("order create failed",
			zap.String("customer_id", in.CustomerID),
			zap.Error(err),
		)
		return nil, st, err
	}
	st.DBWriteMs = convertToMs(t0)

	t1 := time.Now()
	payload := domain.OrderCreatedPayload{
		OrderID:     order.OrderID,
		CustomerID:  order.CustomerID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
	}
	if err := s.publisher.Publish(ctx, domain.EventOrderCreated, payload); err != nil {
		// The order is already committed; the caller must hear about the
		// missing creation event rather than a silent success.
		s.logger.Error("order persisted but OrderCreated publish failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		return order, st, err
	}
	st.PublishMs = convertToMs(t1)

	s.metrics.ObserveCreate(st.DBWriteMs, st.PublishMs)
	s.logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("customer_id", order.CustomerID),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Float64("db_write_ms", st.DBWriteMs),
		zap.Float64("publish_ms", st.PublishMs),
	)
	return order, st, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, _, err := s.GetByIDWithStats(ctx, id)
	return o, err
}

// GetByIDWithStats serves the read path: cache first, store on miss, then
// populate the cache. A cached snapshot is returned as-is; after a status
// update it may lag the store by up to the cache TTL.
func (s *Service) GetByIDWithStats(ctx context.Context, id string) (*domain.Order, LookupStats, error) {
	var st LookupStats

	id, err := domain.ParseID(id)
	if err != nil {
		return nil, st, err
	}

	tCacheStart := time.Now()
	if order, ok := s.cache.Get(ctx, id); ok {
		st.Source = SourceCache
		st.CacheMs = convertToMs(tCacheStart)
		s.metrics.IncCacheHit()
		s.metrics.ObserveLookup(string(st.Source), st.CacheMs, 0)

		s.logger.Debug("order fetched from cache",
			zap.String("order_id", id),
			zap.Float64("cache_ms", st.CacheMs),
		)
		return order, st, nil
	}

	s.metrics.IncCacheMiss()
	st.CacheMs = convertToMs(tCacheStart)

	tDbStart := time.Now()
	order, err := s.storage.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("order lookup failed",
				zap.String("order_id", id),
				zap.Error(err),
			)
		}
		return nil, st, err
	}

	st.Source = SourceDB
	st.DBMs = convertToMs(tDbStart)

	s.cache.Set(ctx, order)

	s.metrics.ObserveLookup(string(st.Source), st.CacheMs, st.DBMs)
	s.logger.Debug("order fetched from db",
		zap.String("order_id", id),
		zap.Float64("cache_ms", st.CacheMs),
		zap.Float64("db_ms", st.DBMs),
	)
	return order, st, nil
}
