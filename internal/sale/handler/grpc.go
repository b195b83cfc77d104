package handler

import (
	"context"
	"encoding/json"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/sale"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/pkg/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SaleServiceName      = "omnipos.sales.v1.SaleService"
	CheckoutFullMethod   = "/" + SaleServiceName + "/Checkout"
	GetSaleFullMethod    = "/" + SaleServiceName + "/GetSale"
	idempotencyKeyMDName = "idempotency-key"
)

// SaleServiceServer carries JSON-shaped google.protobuf.Struct messages, the
// same shapes the HTTP API uses.
type SaleServiceServer interface {
	Checkout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSale(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSaleServiceServer(s grpc.ServiceRegistrar, srv SaleServiceServer) {
	s.RegisterService(&SaleServiceDesc, srv)
}

var SaleServiceDesc = grpc.ServiceDesc{
	ServiceName: SaleServiceName,
	HandlerType: (*SaleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Checkout", Handler: checkoutHandler},
		{MethodName: "GetSale", Handler: getSaleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/sales/v1/sale.proto",
}

func checkoutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SaleServiceServer).Checkout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckoutFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SaleServiceServer).Checkout(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getSaleHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SaleServiceServer).GetSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSaleFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SaleServiceServer).GetSale(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type SaleGRPCHandler struct {
	uc     sale.UseCase
	logger logger.ZapLogger
}

func NewSaleGRPCHandler(uc sale.UseCase, log logger.ZapLogger) *SaleGRPCHandler {
	return &SaleGRPCHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *SaleGRPCHandler) Checkout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CheckoutRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed checkout request")
	}

	key := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if val := md.Get(idempotencyKeyMDName); len(val) > 0 {
			key = val[0]
		}
	}

	receipt, err := h.uc.Checkout(ctx, req.toInput(key))
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	out, err := encodeStruct(newCheckoutResponse(receipt))
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (h *SaleGRPCHandler) GetSale(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["sale_id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "sale_id is required")
	}

	s, err := h.uc.GetSale(ctx, id)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	out, err := encodeStruct(s)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (h *SaleGRPCHandler) toStatus(ctx context.Context, err error) error {
	st := apperror.GRPCStatus(err)
	if status.Code(st) == codes.Internal || status.Code(st) == codes.Unavailable {
		h.logger.Error("Sale rpc failed",
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err),
		)
	}
	return st
}

func decodeStruct(in *structpb.Struct, dest any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
