package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
)

// Client calls a remote dongpa.v1.Strategy service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial creates a client targeting the given gRPC address.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close is then a no-op.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Describe returns the description of a mode.
func (c *Client) Describe(ctx context.Context, mode string) (domain.Description, error) {
	var out domain.Description
	err := c.call(ctx, MethodDescribe, DescribeRequest{Mode: mode}, &out)
	return out, err
}

// Signal computes the live signal for cfg.
func (c *Client) Signal(ctx context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error) {
	var out service.SignalResult
	if err := c.call(ctx, MethodSignal, cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backtest runs a backtest on the server.
func (c *Client) Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestRun, error) {
	var out service.BacktestRun
	if err := c.call(ctx, MethodBacktest, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Compare backtests the configuration grid on the server.
func (c *Client) Compare(ctx context.Context, req service.CompareRequest) (*strategy.Comparison, error) {
	var out strategy.Comparison
	if err := c.call(ctx, MethodCompare, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report fetches a performance report.
func (c *Client) Report(ctx context.Context, req service.BacktestRequest) (*strategy.Report, error) {
	var out strategy.Report
	if err := c.call(ctx, MethodReport, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp); err != nil {
		return fromStatus(err)
	}
	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// fromStatus maps well-known status codes back onto the domain sentinels so
// callers can use errors.Is on either side of the wire.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", store.ErrRunNotFound, st.Message())
	}
	return err
}
