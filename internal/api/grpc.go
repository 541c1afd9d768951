package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/gdtan02/swift-trader/internal/apperr"
	"github.com/gdtan02/swift-trader/internal/backtest"
)

// ---------------------------------------------------------------------------
// JSON codec
// ---------------------------------------------------------------------------

// CodecName is the content subtype of the backtester service. Messages are
// the JSON request and response types of the HTTP gateway.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

// Full method names of the backtester service.
const (
	ServiceName = "swifttrader.Backtester"
	RunMethod   = "/" + ServiceName + "/Run"
	SweepMethod = "/" + ServiceName + "/Sweep"
)

// BacktesterServer is the server API of the backtester gRPC service.
type BacktesterServer interface {
	Run(ctx context.Context, req *backtest.Request) (*backtest.Response, error)
	Sweep(ctx context.Context, req *backtest.SweepRequest) (*backtest.SweepResponse, error)
}

var backtesterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BacktesterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "Sweep", Handler: sweepHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swifttrader/backtester.json",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(backtest.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktesterServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktesterServer).Run(ctx, req.(*backtest.Request))
	}
	return interceptor(ctx, in, info, handler)
}

func sweepHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(backtest.SweepRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktesterServer).Sweep(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SweepMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktesterServer).Sweep(ctx, req.(*backtest.SweepRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// Server implementation
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ BacktesterServer = (*GRPCService)(nil)

// GRPCService exposes a Backtester over gRPC.
type GRPCService struct {
	svc Backtester
	log *slog.Logger
}

// NewGRPCService creates a GRPCService backed by svc.
func NewGRPCService(svc Backtester, logger *slog.Logger) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{svc: svc, log: logger.With("component", "grpc")}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *GRPCService) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&backtesterServiceDesc, s)
}

// Run runs one backtest.
func (s *GRPCService) Run(ctx context.Context, req *backtest.Request) (*backtest.Response, error) {
	resp, err := s.svc.Run(ctx, *req)
	if err != nil {
		s.log.Debug("run failed", "error", err)
		return nil, toStatus(err)
	}
	return resp, nil
}

// Sweep runs a parameter sweep.
func (s *GRPCService) Sweep(ctx context.Context, req *backtest.SweepRequest) (*backtest.SweepResponse, error) {
	resp, err := s.svc.Sweep(ctx, req.Request, req.Grid)
	if err != nil {
		s.log.Debug("sweep failed", "error", err)
		return nil, toStatus(err)
	}
	return resp, nil
}

// toStatus maps an error to a gRPC status. The message keeps the coded
// error text so clients can recover the code.
func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	ae, ok := apperr.As(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	var code codes.Code
	switch ae.Kind() {
	case apperr.KindConfiguration, apperr.KindValidation:
		code = codes.InvalidArgument
	case apperr.KindDataRange:
		code = codes.OutOfRange
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindModelNotReady:
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	if ae.Code == apperr.CodeStrategyNotFound {
		code = codes.NotFound
	}
	return status.Error(code, err.Error())
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// BacktesterClient calls the backtester service over conn.
type BacktesterClient struct {
	conn grpc.ClientConnInterface
}

// NewBacktesterClient creates a BacktesterClient.
func NewBacktesterClient(conn grpc.ClientConnInterface) *BacktesterClient {
	return &BacktesterClient{conn: conn}
}

// Run runs one backtest.
func (c *BacktesterClient) Run(ctx context.Context, req *backtest.Request, opts ...grpc.CallOption) (*backtest.Response, error) {
	out := new(backtest.Response)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, RunMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Sweep runs a parameter sweep.
func (c *BacktesterClient) Sweep(ctx context.Context, req *backtest.SweepRequest, opts ...grpc.CallOption) (*backtest.SweepResponse, error) {
	out := new(backtest.SweepResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, SweepMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
