package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/ticket-booking/internal/adapter/handler"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC address of the booking server")
	itemID := flag.String("item", "GA", "item class to book")
	quantity := flag.Int("qty", 1, "quantity per booking")
	totalRequests := flag.Int("requests", 500, "number of booking requests")
	concurrency := flag.Int("concurrency", 100, "requests in flight at once")
	flag.Parse()

	ctx := context.Background()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	client := handler.NewBookingClient(conn)

	before, err := availableOf(ctx, client, *itemID)
	if err != nil {
		log.Fatalf("failed to read catalog: %v", err)
	}

	// Counters
	var successCount, stockCount, declinedCount, otherCount atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		buyerID := fmt.Sprintf("stress-buyer-%d", i)
		g.Go(func() error {
			resp, err := client.Book(gctx, &handler.BookRequest{
				RequestID: uuid.New().String(),
				BuyerID:   buyerID,
				Items:     []handler.CartItemJSON{{ItemID: *itemID, Quantity: *quantity}},
			})
			switch {
			case err != nil:
				otherCount.Add(1)
			case resp.Success:
				successCount.Add(1)
			case resp.ErrorCode == "INSUFFICIENT_STOCK":
				stockCount.Add(1)
			case resp.ErrorCode == "PAYMENT_DECLINED":
				declinedCount.Add(1)
			default:
				otherCount.Add(1)
			}
			return nil
		})
	}

	g.Wait()
	elapsed := time.Since(start)

	after, err := availableOf(ctx, client, *itemID)
	if err != nil {
		log.Fatalf("failed to read catalog: %v", err)
	}

	success := int(successCount.Load())
	maxSuccess := before / *quantity

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Item Class:         %s\n", *itemID)
	fmt.Printf("Available Before:   %d\n", before)
	fmt.Printf("Available After:    %d\n", after)
	fmt.Printf("Total Requests:     %d\n", *totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", stockCount.Load())
	fmt.Printf("Payment Declined:   %d\n", declinedCount.Load())
	fmt.Printf("Other Failures:     %d\n", otherCount.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success > maxSuccess {
		fmt.Printf("FAIL: %d bookings succeeded, at most %d possible\n", success, maxSuccess)
		failed = true
	} else {
		fmt.Printf("PASS: %d bookings succeeded, limit %d\n", success, maxSuccess)
	}

	// Only valid when nothing else books the same tier during the run.
	if consumed := before - after; consumed != success*(*quantity) {
		fmt.Printf("FAIL: stock dropped by %d, committed bookings hold %d\n", consumed, success*(*quantity))
		failed = true
	} else {
		fmt.Printf("PASS: stock dropped by exactly %d\n", consumed)
	}

	if failed {
		os.Exit(1)
	}
}

func availableOf(ctx context.Context, client *handler.BookingClient, itemID string) (int, error) {
	resp, err := client.ListItemClasses(ctx, &handler.ListItemClassesRequest{Fresh: true})
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("%s: %s", resp.ErrorCode, resp.Message)
	}
	for _, item := range resp.ItemClasses {
		if item.ID == itemID {
			return item.Available, nil
		}
	}
	return 0, fmt.Errorf("item class %s not found", itemID)
}
