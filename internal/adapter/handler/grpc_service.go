package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The booking RPCs carry JSON bodies over gRPC using the "json" content
// subtype, so the messages below are plain structs.

const (
	JSONCodecName = "json"

	bookingServiceName        = "booking.v1.BookingService"
	bookFullMethod            = "/" + bookingServiceName + "/Book"
	listOrdersFullMethod      = "/" + bookingServiceName + "/ListOrders"
	listItemClassesFullMethod = "/" + bookingServiceName + "/ListItemClasses"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return JSONCodecName }

type BookRequest struct {
	RequestID string         `json:"request_id"`
	BuyerID   string         `json:"buyer_id"`
	Items     []CartItemJSON `json:"items"`
}

type BookResponse = BookHTTPResponse

type ListOrdersRequest struct {
	BuyerID string `json:"buyer_id"`
}

type ListOrdersResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"error_code,omitempty"`
	Orders    []OrderJSON `json:"orders"`
}

type ListItemClassesRequest struct {
	// Fresh skips the catalog cache.
	Fresh bool `json:"fresh,omitempty"`
}

type ListItemClassesResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	ErrorCode   string          `json:"error_code,omitempty"`
	ItemClasses []ItemClassJSON `json:"item_classes"`
}

type BookingServiceServer interface {
	Book(context.Context, *BookRequest) (*BookResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	ListItemClasses(context.Context, *ListItemClassesRequest) (*ListItemClassesResponse, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Book",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(BookRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(BookingServiceServer).Book(ctx, req.(*BookRequest))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: bookFullMethod}, call)
			},
		},
		{
			MethodName: "ListOrders",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(ListOrdersRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(BookingServiceServer).ListOrders(ctx, req.(*ListOrdersRequest))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: listOrdersFullMethod}, call)
			},
		},
		{
			MethodName: "ListItemClasses",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(ListItemClassesRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req any) (any, error) {
					return srv.(BookingServiceServer).ListItemClasses(ctx, req.(*ListItemClassesRequest))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: listItemClassesFullMethod}, call)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

// BookingClient calls BookingService with the JSON codec.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error) {
	out := new(BookResponse)
	if err := c.cc.Invoke(ctx, bookFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.cc.Invoke(ctx, listOrdersFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) ListItemClasses(ctx context.Context, in *ListItemClassesRequest, opts ...grpc.CallOption) (*ListItemClassesResponse, error) {
	out := new(ListItemClassesResponse)
	if err := c.cc.Invoke(ctx, listItemClassesFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
