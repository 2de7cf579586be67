package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/observability"
)

type HTTPHandler struct {
	bookingService *service.BookingService
	catalogService *service.CatalogService
	logger         zerolog.Logger
}

type CartItemJSON struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type BookHTTPRequest struct {
	RequestID string         `json:"request_id"`
	BuyerID   string         `json:"buyer_id"`
	Items     []CartItemJSON `json:"items"`
}

type OrderLineJSON struct {
	ID                  string          `json:"id"`
	ItemClassID         string          `json:"item_class_id"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"unit_price_at_purchase"`
}

type OrderJSON struct {
	OrderID     string          `json:"order_id"`
	BuyerID     string          `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []OrderLineJSON `json:"lines"`
}

type ItemClassJSON struct {
	ID        string          `json:"id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Available int             `json:"available"`
}

type ErrorDetailJSON struct {
	ItemID    string `json:"item_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

type BookHTTPResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	ErrorCode string           `json:"error_code,omitempty"`
	Detail    *ErrorDetailJSON `json:"detail,omitempty"`
	Order     *OrderJSON       `json:"order,omitempty"`
}

type UpdatePriceHTTPRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func NewHTTPHandler(bookingService *service.BookingService, catalogService *service.CatalogService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		bookingService: bookingService,
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers every route on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("POST /api/bookings", h.withRequestLogger(h.Book))
	mux.Handle("GET /api/buyers/{buyerID}/orders", h.withRequestLogger(h.ListOrders))
	mux.Handle("GET /api/item-classes", h.withRequestLogger(h.ListItemClasses))
	mux.Handle("PUT /api/item-classes/{itemID}/price", h.withRequestLogger(h.UpdatePrice))
}

func (h *HTTPHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, BookHTTPResponse{
			Success:   false,
			Message:   "invalid request body",
			ErrorCode: codeInvalidInput,
		})
		return
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	receipt, err := h.bookingService.Book(r.Context(), service.BookingRequest{
		RequestID: req.RequestID,
		BuyerID:   req.BuyerID,
		Items:     items,
	})
	if err != nil {
		d := describeError(err)
		writeJSON(w, d.status, BookHTTPResponse{
			Success:   false,
			Message:   d.message,
			ErrorCode: d.code,
			Detail:    errorDetail(err),
		})
		return
	}

	order := receiptJSON(receipt)
	writeJSON(w, http.StatusCreated, BookHTTPResponse{
		Success: true,
		Message: "order placed successfully",
		Order:   &order,
	})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.bookingService.ListOrdersByBuyer(r.Context(), r.PathValue("buyerID"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]OrderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderJSON(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *HTTPHandler) ListItemClasses(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalogService.ListItemClasses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]ItemClassJSON, 0, len(items))
	for _, item := range items {
		out = append(out, ItemClassJSON{ID: item.ID, UnitPrice: item.UnitPrice, Available: item.Available})
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_classes": out})
}

func (h *HTTPHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriceHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewInvalidInput("invalid request body"))
		return
	}

	if err := h.catalogService.UpdateUnitPrice(r.Context(), r.PathValue("itemID"), req.UnitPrice); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRequestLogger extracts the caller's trace context and puts a logger
// tagged with the request id into the context.
func (h *HTTPHandler) withRequestLogger(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		lc := h.logger.With().Str("request_id", requestID)
		if traceID := observability.TraceIDFromContext(ctx); traceID != "" {
			lc = lc.Str("trace_id", traceID)
		}
		logger := lc.Logger()
		ctx = logger.WithContext(ctx)

		start := time.Now()
		next(w, r.WithContext(ctx))
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("handled request")
	})
}

func errorDetail(err error) *ErrorDetailJSON {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		available := stockErr.Available
		return &ErrorDetailJSON{ItemID: stockErr.ItemID, Requested: stockErr.Requested, Available: &available}
	}
	var tierErr *domain.UnknownTierError
	if errors.As(err, &tierErr) {
		return &ErrorDetailJSON{ItemID: tierErr.ItemID}
	}
	return nil
}

func receiptJSON(r *domain.BookingReceipt) OrderJSON {
	return orderJSON(domain.Order{
		ID:          r.OrderID,
		BuyerID:     r.BuyerID,
		TotalAmount: r.TotalAmount,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		Lines:       r.Lines,
	})
}

func orderJSON(o domain.Order) OrderJSON {
	out := OrderJSON{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		Lines:       make([]OrderLineJSON, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, OrderLineJSON{
			ID:                  l.ID,
			ItemClassID:         l.ItemClassID,
			Quantity:            l.Quantity,
			UnitPriceAtPurchase: l.UnitPriceAtPurchase,
		})
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	d := describeError(err)
	writeJSON(w, d.status, BookHTTPResponse{
		Success:   false,
		Message:   d.message,
		ErrorCode: d.code,
		Detail:    errorDetail(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
