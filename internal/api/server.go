// Package api exposes the dongpa strategy as the dongpa.v1.Strategy gRPC
// service. Messages are google.protobuf.Struct values carrying the same JSON
// documents the HTTP API serves.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dongpa.v1.Strategy"

// Strategy is the subset of *service.Service the gRPC layer calls.
type Strategy interface {
	Describe(mode string) (domain.Description, error)
	Signal(ctx context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error)
	Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestRun, error)
	Compare(ctx context.Context, req service.CompareRequest) (*strategy.Comparison, error)
	Report(ctx context.Context, req service.BacktestRequest) (*strategy.Report, error)
}

var _ Strategy = (*service.Service)(nil)

// DescribeRequest names the mode to describe.
type DescribeRequest struct {
	Mode string `json:"mode"`
}

// Server implements the dongpa.v1.Strategy service.
type Server struct {
	svc Strategy
	log *slog.Logger
}

// NewServer creates a gRPC server backed by svc.
func NewServer(svc Strategy, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&serviceDesc, s)
}

// Describe returns the description of a mode.
func (s *Server) Describe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DescribeRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, s.status("Describe", err)
	}
	d, err := s.svc.Describe(req.Mode)
	if err != nil {
		return nil, s.status("Describe", err)
	}
	return s.reply("Describe", d)
}

// Signal computes the live signal for a strategy configuration.
func (s *Server) Signal(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cfg domain.StrategyConfig
	if err := decodeRequest(in, &cfg); err != nil {
		return nil, s.status("Signal", err)
	}
	sig, err := s.svc.Signal(ctx, cfg)
	if err != nil {
		return nil, s.status("Signal", err)
	}
	return s.reply("Signal", sig.Rounded())
}

// Backtest runs and archives a backtest.
func (s *Server) Backtest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.BacktestRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, s.status("Backtest", err)
	}
	run, err := s.svc.Backtest(ctx, req)
	if err != nil {
		return nil, s.status("Backtest", err)
	}
	return s.reply("Backtest", run.Rounded())
}

// Compare backtests the mode × divisions grid.
func (s *Server) Compare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.CompareRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, s.status("Compare", err)
	}
	cmp, err := s.svc.Compare(ctx, req)
	if err != nil {
		return nil, s.status("Compare", err)
	}
	return s.reply("Compare", cmp)
}

// Report runs a backtest and returns its performance report.
func (s *Server) Report(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req service.BacktestRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, s.status("Report", err)
	}
	rep, err := s.svc.Report(ctx, req)
	if err != nil {
		return nil, s.status("Report", err)
	}
	return s.reply("Report", rep.Rounded())
}

func (s *Server) reply(method string, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, s.status(method, err)
	}
	return out, nil
}

// status converts err into a gRPC status error.
func (s *Server) status(method string, err error) error {
	switch {
	case domain.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrNoSource):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error("grpc call failed", "method", method, "error", err)
	return status.Error(codes.Internal, err.Error())
}

// LoggingInterceptor logs every unary call at debug level.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start),
		)
		return resp, err
	}
}
