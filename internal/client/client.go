package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/history"
	"github.com/ppiankov/transferguard/internal/safety"
	"github.com/ppiankov/transferguard/internal/server"
)

// DefaultTimeout bounds every call.
const DefaultTimeout = 5 * time.Second

// Client connects to a transferguard gRPC server.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// New creates a gRPC client connected to the given address.
// Fail-closed: if the server cannot be reached, Validate returns a block.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to guard server: %w", err)
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// Validate sends a transfer to the remote server for checking.
// Fail-closed: transport errors yield a blocked result with no error. A
// request the server rejects as malformed returns guard.ErrInvalidRequest.
func (c *Client) Validate(ctx context.Context, req guard.Request) (*guard.Result, error) {
	var res guard.Result
	if err := c.call(ctx, "Validate", req, &res); err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("%w: %s", guard.ErrInvalidRequest, status.Convert(err).Message())
		}
		return Unreachable(req, err), nil
	}
	return &res, nil
}

// Unreachable is the blocked result reported when the server cannot answer.
func Unreachable(req guard.Request, err error) *guard.Result {
	return &guard.Result{
		Decision: safety.Block,
		Report: &safety.Report{
			Approved:             false,
			RiskLevel:            safety.Critical,
			Warnings:             []string{},
			Blockers:             []string{fmt.Sprintf("guard server unreachable: %v", err)},
			FromDisplay:          req.From,
			ToDisplay:            req.To,
			AmountDisplay:        req.Amount + req.Human,
			RequiresConfirmation: true,
		},
	}
}

// Approve grants a pending confirmation via the remote server.
func (c *Client) Approve(ctx context.Context, key string, duration time.Duration) error {
	req := map[string]string{"key": key}
	if duration > 0 {
		req["duration"] = duration.String()
	}
	return c.call(ctx, "Approve", req, nil)
}

// Deny rejects a pending confirmation via the remote server.
func (c *Client) Deny(ctx context.Context, key string) error {
	return c.call(ctx, "Deny", map[string]string{"key": key}, nil)
}

// ListPending returns all confirmations from the remote server.
func (c *Client) ListPending(ctx context.Context) ([]approval.Approval, error) {
	var resp struct {
		Approvals []approval.Approval `json:"approvals"`
	}
	if err := c.call(ctx, "ListPending", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// History lists recent checks recorded by the remote server.
func (c *Client) History(ctx context.Context, q history.Query) ([]history.Record, error) {
	req := map[string]any{"address": q.Address, "decision": q.Decision, "limit": q.Limit}
	var resp struct {
		Records []history.Record `json:"records"`
	}
	if err := c.call(ctx, "History", req, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+server.ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(out.AsMap())
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return structpb.NewStruct(m)
}
