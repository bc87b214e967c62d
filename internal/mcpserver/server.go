// Package mcpserver exposes the reasoning service as Model Context
// Protocol tools, so MCP clients can delegate a question to a full
// reasoning run.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/quill/internal/service"
)

// Tool names.
const (
	ToolQuery      = "react_query"
	ToolGetSession = "get_session"
)

// Service is the subset of *service.Service the MCP tools call.
type Service interface {
	Process(ctx context.Context, req service.Request) (service.Result, error)
	GetSession(ctx context.Context, id string) (service.SessionDetail, error)
}

// Server wraps an MCP server bound to a Service.
type Server struct {
	svc    Service
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New builds a Server advertising the quill tools.
func New(svc Service, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		svc:    svc,
		mcp:    server.NewMCPServer("quill", version, server.WithToolCapabilities(false)),
		logger: logger,
	}

	s.mcp.AddTool(mcp.NewTool(ToolQuery,
		mcp.WithDescription("Answer a question by running a bounded think, act and observe loop over the document tools. Returns the answer with its reasoning trace."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question, 1 to 2000 characters.")),
		mcp.WithString("session_id", mcp.Description("Optional id to assign to the session.")),
	), s.handleQuery)

	s.mcp.AddTool(mcp.NewTool(ToolGetSession,
		mcp.WithDescription("Return the full record of a previous reasoning session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id returned by react_query.")),
	), s.handleGetSession)

	return s
}

// ServeStdio serves MCP over the given streams until ctx is canceled or
// the input closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Process(ctx, service.Request{
		Query:     query,
		SessionID: req.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("mcp query processed", "session_id", res.SessionID, "success", res.Success)

	if !res.Success {
		msg := "reasoning failed"
		if res.Error != nil {
			msg = *res.Error
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGetSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
