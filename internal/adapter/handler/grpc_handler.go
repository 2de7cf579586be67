package handler

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
)

type GRPCHandler struct {
	bookingService *service.BookingService
	catalogService *service.CatalogService
}

func NewGRPCHandler(bookingService *service.BookingService, catalogService *service.CatalogService) *GRPCHandler {
	return &GRPCHandler{bookingService: bookingService, catalogService: catalogService}
}

var _ BookingServiceServer = (*GRPCHandler)(nil)

// Book reports business failures in the response body rather than as RPC
// errors.
func (h *GRPCHandler) Book(ctx context.Context, req *BookRequest) (*BookResponse, error) {
	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	receipt, err := h.bookingService.Book(ctx, service.BookingRequest{
		RequestID: req.RequestID,
		BuyerID:   req.BuyerID,
		Items:     items,
	})
	if err != nil {
		d := describeError(err)
		return &BookResponse{
			Success:   false,
			Message:   d.message,
			ErrorCode: d.code,
			Detail:    errorDetail(err),
		}, nil
	}

	order := receiptJSON(receipt)
	return &BookResponse{
		Success: true,
		Message: "order placed successfully",
		Order:   &order,
	}, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, err := h.bookingService.ListOrdersByBuyer(ctx, req.BuyerID)
	if err != nil {
		d := describeError(err)
		return &ListOrdersResponse{Success: false, Message: d.message, ErrorCode: d.code}, nil
	}

	resp := &ListOrdersResponse{Success: true, Message: "ok", Orders: make([]OrderJSON, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, orderJSON(o))
	}
	return resp, nil
}

func (h *GRPCHandler) ListItemClasses(ctx context.Context, req *ListItemClassesRequest) (*ListItemClassesResponse, error) {
	list := h.catalogService.ListItemClasses
	if req.Fresh {
		list = h.catalogService.ListItemClassesFresh
	}
	items, err := list(ctx)
	if err != nil {
		d := describeError(err)
		return &ListItemClassesResponse{Success: false, Message: d.message, ErrorCode: d.code}, nil
	}

	resp := &ListItemClassesResponse{Success: true, Message: "ok", ItemClasses: make([]ItemClassJSON, 0, len(items))}
	for _, item := range items {
		resp.ItemClasses = append(resp.ItemClasses, ItemClassJSON{ID: item.ID, UnitPrice: item.UnitPrice, Available: item.Available})
	}
	return resp, nil
}
