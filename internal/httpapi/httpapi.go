package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/application/service"
	"github.com/adilzhm/order-service/internal/config"
	"github.com/adilzhm/order-service/internal/domain"
	"github.com/adilzhm/order-service/internal/observability"
)

//go:generate mockgen -source internal/httpapi/httpapi.go -destination=internal/httpapi/mock_test.go -package=httpapi

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*domain.Order, service.CreateStats, error)
	GetByIDWithStats(ctx context.Context, id string) (*domain.Order, service.LookupStats, error)
}

type Server struct {
	service OrderService
	router  chi.Router
	logger  *zap.Logger
	metrics observability.Metrics
}

func New(svc OrderService, limiter Limiter, rlCfg config.RateLimit, logger *zap.Logger, metrics observability.Metrics) *Server {
	s := &Server{
		service: svc,
		logger:  logger,
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		Recoverer(logger),
		ObserveRequests(metrics),
	)

	r.Get("/", s.root)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/orders", func(r chi.Router) {
		r.With(RateLimit(limiter, rlCfg, logger, metrics)).Post("/", s.createOrder)
		r.Get("/{order_id}", s.getOrder)
	})

	s.router = r
	return s
}

type createOrderRequest struct {
	CustomerID      string            `json:"customer_id"`
	ShippingAddress string            `json:"shipping_address"`
	Items           []createOrderItem `json:"items"`
}

type createOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order Processing Service is running"})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.logger.Warn("bad create order body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := validateCreate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := service.CreateOrderInput{
		CustomerID:      req.CustomerID,
		ShippingAddress: req.ShippingAddress,
		Items:           make([]service.CreateOrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CreateOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	order, st, err := s.service.CreateOrder(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrPublishFailed) && order != nil {
			// The order is committed but its creation event never went out.
			// The caller must not treat this as a clean success.
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message":  "order persisted but creation event was not published",
				"order_id": order.OrderID,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create order")
		return
	}

	observability.AppendServerTiming(w, "db_write", st.DBWriteMs, "")
	observability.AppendServerTiming(w, "publish", st.PublishMs, "")
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "order_id")

	order, st, err := s.service.GetByIDWithStats(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusBadRequest, "invalid order id")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	observability.AppendServerTiming(w, "cache", st.CacheMs, "")
	observability.AppendServerTiming(w, "db", st.DBMs, "")
	w.Header().Set("X-Source", string(st.Source))
	observability.SetIfPos(w, "X-Cache-Time", st.CacheMs)
	observability.SetIfPos(w, "X-DB-Time", st.DBMs)

	writeJSON(w, http.StatusOK, order)
}

func validateCreate(req createOrderRequest) error {
	if _, err := domain.ParseID(req.CustomerID); err != nil {
		return errors.New("customer_id must be a valid uuid")
	}
	if req.ShippingAddress == "" {
		return errors.New("shipping_address is required")
	}
	if len(req.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for _, it := range req.Items {
		if _, err := domain.ParseID(it.ProductID); err != nil {
			return errors.New("items.product_id must be a valid uuid")
		}
		if it.Quantity <= 0 {
			return errors.New("items.quantity must be > 0")
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}
