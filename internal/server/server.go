package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/history"
	"github.com/ppiankov/transferguard/internal/logging"
)

// Config holds gRPC server configuration.
type Config struct {
	Port int
}

// Server implements the TransferGuard gRPC service on top of a guard.Service.
type Server struct {
	svc        *guard.Service
	cfg        Config
	log        *logrus.Entry
	grpcServer *grpc.Server
}

// New creates a gRPC server around svc. The caller owns svc.
func New(cfg Config, svc *guard.Service, logger *logrus.Logger) *Server {
	s := &Server{
		svc: svc,
		cfg: cfg,
		log: logging.Component(logger, "grpc"),
	}
	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Validate implements the Validate RPC.
func (s *Server) Validate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req guard.Request
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	res, err := s.svc.Handle(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

// Approve implements the Approve RPC.
func (s *Server) Approve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Key      string `json:"key"`
		Duration string `json:"duration"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	var duration time.Duration
	if req.Duration != "" {
		var err error
		duration, err = time.ParseDuration(req.Duration)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid duration %q: %v", req.Duration, err)
		}
	}

	store, err := s.approvals()
	if err != nil {
		return nil, err
	}
	if err := store.Approve(req.Key, duration); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]string{"key": req.Key, "status": string(approval.StatusApproved)})
}

// Deny implements the Deny RPC.
func (s *Server) Deny(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Key string `json:"key"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	store, err := s.approvals()
	if err != nil {
		return nil, err
	}
	if err := store.Deny(req.Key); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]string{"key": req.Key, "status": string(approval.StatusDenied)})
}

// ListPending implements the ListPending RPC.
func (s *Server) ListPending(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	store, err := s.approvals()
	if err != nil {
		return nil, err
	}
	list, err := store.List()
	if err != nil {
		return nil, toStatus(err)
	}
	if list == nil {
		list = []approval.Approval{}
	}
	return toStruct(map[string]any{"approvals": list})
}

// History implements the History RPC.
func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Address  string `json:"address"`
		Decision string `json:"decision"`
		Limit    int    `json:"limit"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	store := s.svc.History()
	if store == nil {
		return nil, status.Error(codes.FailedPrecondition, "history is not enabled")
	}
	records, err := store.List(ctx, history.Query{Address: req.Address, Decision: req.Decision, Limit: req.Limit})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"records": records})
}

func (s *Server) approvals() (*approval.Store, error) {
	st := s.svc.Approvals()
	if st == nil {
		return nil, status.Error(codes.FailedPrecondition, "confirmations are not enabled")
	}
	return st, nil
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := s.log.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("rpc failed")
	} else {
		entry.Debug("rpc served")
	}
	return resp, err
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, guard.ErrInvalidRequest), errors.Is(err, approval.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, approval.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
