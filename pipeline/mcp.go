package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ctrldoc/docpipe"
	"github.com/hazyhaar/ctrldoc/masthead"
	"github.com/hazyhaar/ctrldoc/observability"
)

// History answers render history queries for the ctrldoc_history tool.
type History interface {
	Recent(ctx context.Context, docNumber string, limit int) ([]observability.RenderEvent, error)
}

type endpoint func(ctx context.Context, req any) (any, error)

// RegisterMCP registers the conversion tools on an MCP server. history may
// be nil, in which case ctrldoc_history is not registered.
func (c *Coordinator) RegisterMCP(srv *mcp.Server, history History) {
	c.registerRenderTool(srv)
	c.registerDefaultsTool(srv)
	registerFormatsTool(srv)
	if history != nil {
		registerHistoryTool(srv, history)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var metadataSchema = map[string]any{
	"type":        "object",
	"description": "Document control metadata (doc_name and doc_number required)",
	"properties": map[string]any{
		"doc_name":         map[string]any{"type": "string"},
		"doc_number":       map[string]any{"type": "string"},
		"issue_no":         map[string]any{"type": "string"},
		"revision_no":      map[string]any{"type": "integer"},
		"date_of_issue":    map[string]any{"type": "string", "description": "RFC 3339"},
		"date_of_revision": map[string]any{"type": "string", "description": "RFC 3339"},
		"review_due_date":  map[string]any{"type": "string", "description": "RFC 3339"},
		"status":           map[string]any{"type": "string"},
		"company_name":     map[string]any{"type": "string"},
		"preparer_name":    map[string]any{"type": "string"},
		"approver_name":    map[string]any{"type": "string"},
		"issuer_name":      map[string]any{"type": "string"},
		"department_names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

var controlCopySchema = map[string]any{
	"type":        "object",
	"description": "Optional controlled-copy recipient",
	"properties": map[string]any{
		"user_id":             map[string]any{"type": "string"},
		"user_full_name":      map[string]any{"type": "string"},
		"control_copy_number": map[string]any{"type": "string"},
	},
}

// registerTool adapts a typed endpoint to an MCP handler. Endpoint and
// decode errors become tool errors, not protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, ep endpoint, decode func(json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		resp, err := ep(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func decodeInto[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// --- ctrldoc_render ---

func (c *Coordinator) registerRenderTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ctrldoc_render",
		Description: "Render a .docx file into a controlled PDF with document header and footer. Falls back to a plain-text layout when the browser engine fails.",
		InputSchema: inputSchema(map[string]any{
			"source_path":  map[string]any{"type": "string", "description": "Path of the uploaded .docx file"},
			"metadata":     metadataSchema,
			"control_copy": controlCopySchema,
		}, []string{"source_path", "metadata"}),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		return c.Convert(ctx, *req.(*Request))
	}
	registerTool(srv, tool, ep, decodeInto[Request])
}

// --- ctrldoc_defaults ---

type defaultsReq struct {
	Metadata    masthead.Metadata     `json:"metadata"`
	ControlCopy *masthead.ControlCopy `json:"control_copy,omitempty"`
}

type defaultsResp struct {
	Header []string `json:"header"`
	Footer []string `json:"footer"`
}

func (c *Coordinator) registerDefaultsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ctrldoc_defaults",
		Description: "Preview the resolved header and footer rows for the given metadata, defaults applied.",
		InputSchema: inputSchema(map[string]any{
			"metadata":     metadataSchema,
			"control_copy": controlCopySchema,
		}, []string{"metadata"}),
	}
	ep := func(_ context.Context, req any) (any, error) {
		r := req.(*defaultsReq)
		f := masthead.Resolve(r.Metadata, r.ControlCopy, c.now())
		return defaultsResp{
			Header: append([]string{masthead.BannerLine(f)}, masthead.HeaderLines(f, "1", "N")...),
			Footer: masthead.FooterLines(f),
		}, nil
	}
	registerTool(srv, tool, ep, decodeInto[defaultsReq])
}

// --- ctrldoc_formats ---

func registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ctrldoc_formats",
		Description: "List the source document formats accepted for rendering.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	ep := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": docpipe.SupportedFormats()}, nil
	}
	registerTool(srv, tool, ep, decodeInto[struct{}])
}

// --- ctrldoc_history ---

type historyReq struct {
	DocNumber string `json:"doc_number"`
	Limit     int    `json:"limit"`
}

type historyItem struct {
	ID           string `json:"id"`
	DocNumber    string `json:"doc_number"`
	RevisionNo   int    `json:"revision_no"`
	Engine       string `json:"engine,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Pages        int    `json:"pages"`
	Degraded     bool   `json:"degraded"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func registerHistoryTool(srv *mcp.Server, history History) {
	tool := &mcp.Tool{
		Name:        "ctrldoc_history",
		Description: "List recent render outcomes, newest first, optionally for one document number.",
		InputSchema: inputSchema(map[string]any{
			"doc_number": map[string]any{"type": "string", "description": "Filter by document number"},
			"limit":      map[string]any{"type": "integer", "description": "Max events (default: 50)"},
		}, nil),
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyReq)
		events, err := history.Recent(ctx, r.DocNumber, r.Limit)
		if err != nil {
			return nil, err
		}
		items := make([]historyItem, 0, len(events))
		for _, ev := range events {
			items = append(items, historyItem{
				ID:           ev.ID,
				DocNumber:    ev.DocNumber,
				RevisionNo:   ev.RevisionNo,
				Engine:       ev.Engine,
				ArtifactPath: ev.ArtifactPath,
				Pages:        ev.PageCount,
				Degraded:     ev.Degraded,
				Success:      ev.Success,
				Error:        ev.Error,
				CreatedAt:    ev.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return map[string]any{"events": items}, nil
	}
	registerTool(srv, tool, ep, decodeInto[historyReq])
}
