package handler

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/core/service"
)

const ledgerServiceName = "stockledger.v1.Ledger"

// Identity metadata keys, the gRPC counterpart of the X-User-* headers.
const (
	mdUserID   = "x-user-id"
	mdUserName = "x-user-name"
	mdUserRole = "x-user-role"
)

type ResolveItemRequest struct {
	Identifier string `json:"identifier"`
}

type MovementRPCRequest struct {
	Item      string `json:"item"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ListTransactionsRequest struct {
	Type   string `json:"type,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
	ItemID int64  `json:"item_id,omitempty"`
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type LedgerServer interface {
	ResolveItem(context.Context, *ResolveItemRequest) (*domain.Item, error)
	Checkout(context.Context, *MovementRPCRequest) (*domain.MovementResult, error)
	Checkin(context.Context, *MovementRPCRequest) (*domain.MovementResult, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*domain.TransactionPage, error)
}

// LedgerServiceDesc describes the ledger service for grpc.Server.RegisterService.
// Messages travel as JSON.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveItem", Handler: unaryHandler("ResolveItem", LedgerServer.ResolveItem)},
		{MethodName: "Checkout", Handler: unaryHandler("Checkout", LedgerServer.Checkout)},
		{MethodName: "Checkin", Handler: unaryHandler("Checkin", LedgerServer.Checkin)},
		{MethodName: "ListTransactions", Handler: unaryHandler("ListTransactions", LedgerServer.ListTransactions)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ledgerServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	catalog   *service.CatalogService
	movements *service.MovementService
	reports   *service.ReportService
	logger    *zap.Logger
}

func NewGRPCHandler(catalog *service.CatalogService, movements *service.MovementService, reports *service.ReportService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{catalog: catalog, movements: movements, reports: reports, logger: logger}
}

func (h *GRPCHandler) ResolveItem(ctx context.Context, req *ResolveItemRequest) (*domain.Item, error) {
	if _, err := actorFromMetadata(ctx); err != nil {
		return nil, err
	}
	item, err := h.catalog.Resolve(ctx, req.Identifier)
	if err != nil {
		return nil, h.toStatus("ResolveItem", err)
	}
	return item, nil
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *MovementRPCRequest) (*domain.MovementResult, error) {
	return h.move(ctx, "Checkout", h.movements.Checkout, req)
}

func (h *GRPCHandler) Checkin(ctx context.Context, req *MovementRPCRequest) (*domain.MovementResult, error) {
	return h.move(ctx, "Checkin", h.movements.Checkin, req)
}

func (h *GRPCHandler) move(ctx context.Context, method string, fn moveFunc, req *MovementRPCRequest) (*domain.MovementResult, error) {
	actor, err := actorFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	result, err := fn(ctx, service.MovementRequest{
		ItemRef:   req.Item,
		Quantity:  req.Quantity,
		Actor:     actor,
		Note:      req.Notes,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, h.toStatus(method, err)
	}
	return result, nil
}

func (h *GRPCHandler) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*domain.TransactionPage, error) {
	if _, err := actorFromMetadata(ctx); err != nil {
		return nil, err
	}

	page, err := h.reports.ListTransactions(ctx, domain.TransactionQuery{
		Kind:   domain.Kind(req.Type),
		UserID: req.UserID,
		ItemID: req.ItemID,
		Page:   req.Page,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, h.toStatus("ListTransactions", err)
	}
	return page, nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOverCapacity),
		errors.Is(err, domain.ErrReferencedByTransactions):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrDuplicateRequest):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrStorageFault):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func actorFromMetadata(ctx context.Context) (domain.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	actor, ok := parseActor(first(md, mdUserID), first(md, mdUserName), first(md, mdUserRole))
	if !ok {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	return actor, nil
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// LedgerClient calls the ledger service with the JSON codec.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// WithActorMetadata attaches the acting user to an outgoing call context.
func WithActorMetadata(ctx context.Context, actor domain.Actor) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		mdUserID, strconv.FormatInt(actor.ID, 10),
		mdUserName, actor.Username,
		mdUserRole, string(actor.Role),
	)
}

func (c *LedgerClient) ResolveItem(ctx context.Context, in *ResolveItemRequest, opts ...grpc.CallOption) (*domain.Item, error) {
	out := new(domain.Item)
	if err := c.invoke(ctx, "ResolveItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Checkout(ctx context.Context, in *MovementRPCRequest, opts ...grpc.CallOption) (*domain.MovementResult, error) {
	out := new(domain.MovementResult)
	if err := c.invoke(ctx, "Checkout", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Checkin(ctx context.Context, in *MovementRPCRequest, opts ...grpc.CallOption) (*domain.MovementResult, error) {
	out := new(domain.MovementResult)
	if err := c.invoke(ctx, "Checkin", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*domain.TransactionPage, error) {
	out := new(domain.TransactionPage)
	if err := c.invoke(ctx, "ListTransactions", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...)
}
