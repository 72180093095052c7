// Package mcp exposes the review pipeline as MCP tools over stdio, so
// AI agents can run analyses and submit approval decisions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/crit/internal/aireview"
	"github.com/joescharf/crit/internal/approval"
	"github.com/joescharf/crit/internal/models"
	"github.com/joescharf/crit/internal/staticcheck"
)

// Server wraps the pipeline components and exposes them as MCP tools.
type Server struct {
	analyzer *staticcheck.Analyzer
	reviewer *aireview.Reviewer
	engine   *approval.Engine
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(analyzer *staticcheck.Analyzer, reviewer *aireview.Reviewer, engine *approval.Engine) *Server {
	return &Server{
		analyzer: analyzer,
		reviewer: reviewer,
		engine:   engine,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("crit", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.analyzeFileTool())
	srv.AddTool(s.reviewFileTool())
	srv.AddTool(s.pendingApprovalsTool())
	srv.AddTool(s.submitDecisionTool())
	srv.AddTool(s.sweepApprovalsTool())
	srv.AddTool(s.approvalStatsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// crit_analyze_file
func (s *Server) analyzeFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_analyze_file",
		mcp.WithDescription("Run static analysis over file content. Returns syntax/type/style issues, code metrics (cyclomatic, cognitive, maintainability), and validity flags as JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, used for language detection")),
		mcp.WithString("content", mcp.Required(), mcp.Description("File content to analyze")),
		mcp.WithString("language", mcp.Description("Language override; detected from the path when omitted")),
	)
	return tool, s.handleAnalyzeFile
}

func (s *Server) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	result, err := s.analyzer.Analyze(ctx, models.ReviewedFile{
		ID:       path,
		Path:     path,
		Language: request.GetString("language", ""),
		Content:  content,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// crit_review_file
func (s *Server) reviewFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_review_file",
		mcp.WithDescription("Run an AI quality review over file content. Returns the overall score (0-100), per-category scores, findings, and derived summary text as JSON. Identical content with identical config is served from cache."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, used for language detection")),
		mcp.WithString("content", mcp.Required(), mcp.Description("File content to review")),
		mcp.WithString("language", mcp.Description("Language override; detected from the path when omitted")),
		mcp.WithString("context", mcp.Description("Optional reviewer context (ticket, diff summary)")),
	)
	return tool, s.handleReviewFile
}

func (s *Server) handleReviewFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	language := request.GetString("language", "")
	if language == "" {
		language = staticcheck.DetectLanguage(path)
	}

	result, err := s.reviewer.Review(ctx, aireview.Request{
		File: models.ReviewedFile{
			ID:       path,
			Path:     path,
			Language: language,
			Content:  content,
		},
		Context: request.GetString("context", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// crit_pending_approvals
func (s *Server) pendingApprovalsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_pending_approvals",
		mcp.WithDescription("List files waiting for a human approval decision, oldest first. Each entry carries the file id, creation time, and whether it is at timeout risk."),
	)
	return tool, s.handlePendingApprovals
}

func (s *Server) handlePendingApprovals(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := s.engine.GetPendingApprovals()

	data, err := json.Marshal(pending)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal pending approvals: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// crit_submit_decision
func (s *Server) submitDecisionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_submit_decision",
		mcp.WithDescription("Submit a decision for a file. Decision must be one of: approved, rejected, needs_changes, requires_manual_review. needs_changes requires requested_changes."),
		mcp.WithString("file_id", mcp.Required(), mcp.Description("File id the decision applies to")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approved, rejected, needs_changes, or requires_manual_review")),
		mcp.WithString("reasoning", mcp.Description("Why this decision was made")),
		mcp.WithString("reviewer", mcp.Description("Reviewer identity")),
		mcp.WithString("requested_changes", mcp.Description("Newline-separated list of required changes (needs_changes only)")),
		mcp.WithNumber("approved_issues", mcp.Description("Number of known issues the reviewer chose to accept")),
	)
	return tool, s.handleSubmitDecision
}

func (s *Server) handleSubmitDecision(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileID, err := request.RequireString("file_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: file_id"), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}

	var changes []string
	for _, c := range strings.Split(request.GetString("requested_changes", ""), "\n") {
		if c = strings.TrimSpace(c); c != "" {
			changes = append(changes, c)
		}
	}

	recorded, err := s.engine.ProcessApprovalDecision(models.ApprovalDecision{
		FileID:           fileID,
		Decision:         models.Decision(decision),
		Reasoning:        request.GetString("reasoning", ""),
		Reviewer:         request.GetString("reviewer", "mcp"),
		RequestedChanges: changes,
		ApprovedIssues:   request.GetInt("approved_issues", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("decision rejected: %v", err)), nil
	}

	data, err := json.Marshal(recorded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal decision: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// crit_sweep_approvals
func (s *Server) sweepApprovalsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_sweep_approvals",
		mcp.WithDescription("Expire pending approvals older than the configured timeout. Each expired file receives a requires_manual_review decision exactly once. Returns the expired file ids."),
	)
	return tool, s.handleSweepApprovals
}

func (s *Server) handleSweepApprovals(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expired := s.engine.CleanupExpiredApprovals()
	if expired == nil {
		expired = []string{}
	}

	data, err := json.Marshal(expired)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal expired ids: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// crit_approval_stats
func (s *Server) approvalStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crit_approval_stats",
		mcp.WithDescription("Read-only statistics: pending queue size, entries at timeout risk, files with decisions, and total decisions recorded."),
	)
	return tool, s.handleApprovalStats
}

func (s *Server) handleApprovalStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(s.engine.GetStats())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
