package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/transferguard/internal/guard"
)

// Server exposes the transfer guard as MCP tools for agents that move funds.
type Server struct {
	mcpServer *mcpsdk.Server
	svc       *guard.Service
}

// New creates an MCP server around svc. The caller owns svc.
func New(svc *guard.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "transferguard",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all transferguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_validate",
		Description: "Check a proposed transfer before signing it. Blocked transfers return an error result with the blockers; transfers needing confirmation return a confirm_key for a human.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_verify_address",
		Description: "Verify that a string is a well-formed base58 account address.",
	}, s.handleVerifyAddress)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_compare_addresses",
		Description: "Compare two addresses character by character and report likely typos.",
	}, s.handleCompare)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_convert",
		Description: "Convert between human token amounts and base units.",
	}, s.handleConvert)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_check_magnitude",
		Description: "Detect a likely order-of-magnitude mistake in a typed amount.",
	}, s.handleMagnitude)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_approve",
		Description: "Record a human confirmation for a transfer. Use only when a person has confirmed the confirm_key.",
	}, s.handleApprove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transferguard_pending",
		Description: "List transfer confirmations and their status.",
	}, s.handlePending)
}
