package handler

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/ticket-booking/internal/adapter/payment"
	"github.com/rl1809/ticket-booking/internal/port"
)

func newBufconnClient(t *testing.T, gate port.PaymentGate) *BookingClient {
	t.Helper()

	bookings, catalog, _ := newTestServices(t, gate)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterBookingServiceServer(server, NewGRPCHandler(bookings, catalog))
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewBookingClient(conn)
}

func TestGRPCHandler_BookAndListOrders(t *testing.T) {
	client := newBufconnClient(t, payment.ApproveAll)
	ctx := context.Background()

	resp, err := client.Book(ctx, &BookRequest{
		RequestID: "req-1",
		BuyerID:   "dave",
		Items:     []CartItemJSON{{ItemID: "GA", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if !resp.Success || resp.Order == nil {
		t.Fatalf("expected success, got %+v", resp)
	}
	if !resp.Order.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected total 30.00, got %s", resp.Order.TotalAmount)
	}

	orders, err := client.ListOrders(ctx, &ListOrdersRequest{BuyerID: "dave"})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if !orders.Success || len(orders.Orders) != 1 {
		t.Fatalf("expected one order, got %+v", orders)
	}
	if orders.Orders[0].OrderID != resp.Order.OrderID {
		t.Errorf("expected order %s, got %s", resp.Order.OrderID, orders.Orders[0].OrderID)
	}
}

func TestGRPCHandler_BusinessFailuresInResponse(t *testing.T) {
	client := newBufconnClient(t, payment.ApproveAll)
	ctx := context.Background()

	resp, err := client.Book(ctx, &BookRequest{
		BuyerID: "erin",
		Items:   []CartItemJSON{{ItemID: "VIP", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("business failures must not be rpc errors: %v", err)
	}
	if resp.Success || resp.ErrorCode != codeInsufficientStock {
		t.Errorf("expected %s, got %+v", codeInsufficientStock, resp)
	}
	if resp.Detail == nil || resp.Detail.Available == nil || *resp.Detail.Available != 1 {
		t.Errorf("unexpected detail: %+v", resp.Detail)
	}

	orders, err := client.ListOrders(ctx, &ListOrdersRequest{})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if orders.Success || orders.ErrorCode != codeInvalidInput {
		t.Errorf("expected %s for empty buyer, got %+v", codeInvalidInput, orders)
	}
}

func TestGRPCHandler_PaymentDeclined(t *testing.T) {
	client := newBufconnClient(t, payment.DeclineAll)

	resp, err := client.Book(context.Background(), &BookRequest{
		BuyerID: "frank",
		Items:   []CartItemJSON{{ItemID: "GA", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if resp.Success || resp.ErrorCode != codePaymentDeclined {
		t.Errorf("expected %s, got %+v", codePaymentDeclined, resp)
	}

	items, err := client.ListItemClasses(context.Background(), &ListItemClassesRequest{})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	for _, item := range items.ItemClasses {
		if item.ID == "GA" && item.Available != 5 {
			t.Errorf("declined booking must not consume stock, GA available=%d", item.Available)
		}
	}
}

func TestGRPCHandler_FreshItemClasses(t *testing.T) {
	client := newBufconnClient(t, payment.ApproveAll)
	ctx := context.Background()

	if _, err := client.Book(ctx, &BookRequest{BuyerID: "hal", Items: []CartItemJSON{{ItemID: "GA", Quantity: 2}}}); err != nil {
		t.Fatalf("rpc failed: %v", err)
	}

	resp, err := client.ListItemClasses(ctx, &ListItemClassesRequest{Fresh: true})
	if err != nil {
		t.Fatalf("rpc failed: %v", err)
	}
	if !resp.Success || len(resp.ItemClasses) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ItemClasses[0].ID != "GA" || resp.ItemClasses[0].Available != 3 {
		t.Errorf("expected GA with 3 left, got %+v", resp.ItemClasses[0])
	}
}
