package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ctrldoc/observability"
)

var testMCPImpl = &mcp.Implementation{Name: "ctrldoc-test", Version: "0.1.0"}

func mcpSession(t *testing.T, c *Coordinator, history History) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	c.RegisterMCP(srv, history)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_Render(t *testing.T) {
	c, _ := newCoordinator(t, WithPrimary(okPrimary()))
	session := mcpSession(t, c, nil)

	text, isErr := mcpCall(t, session, "ctrldoc_render", map[string]any{
		"source_path": writeDocx(t, "Body"),
		"metadata": map[string]any{
			"doc_name":    "Cleaning Procedure",
			"doc_number":  "SOP-001",
			"revision_no": 3,
		},
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Engine != "final" || res.Pages != 1 || !strings.Contains(res.Path, "SOP-001_v3_final_") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMCP_RenderInvalidMetadata(t *testing.T) {
	c, _ := newCoordinator(t, WithPrimary(okPrimary()))
	session := mcpSession(t, c, nil)

	text, isErr := mcpCall(t, session, "ctrldoc_render", map[string]any{
		"source_path": writeDocx(t, "Body"),
		"metadata":    map[string]any{"doc_name": "No number"},
	})
	if !isErr || !strings.Contains(text, "doc_number") {
		t.Fatalf("expected tool error about doc_number, got %q (isError=%v)", text, isErr)
	}
}

func TestMCP_Defaults(t *testing.T) {
	c, _ := newCoordinator(t)
	session := mcpSession(t, c, nil)

	text, isErr := mcpCall(t, session, "ctrldoc_defaults", map[string]any{
		"metadata":     map[string]any{"doc_name": "Cleaning Procedure", "doc_number": "SOP-001"},
		"control_copy": map[string]any{"user_id": "42", "user_full_name": "Jane Smith"},
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp defaultsResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Header[0] != "Cleaning Procedure (SOP-001)" || resp.Header[1] != "COMPANY NAME" {
		t.Errorf("header = %q", resp.Header)
	}
	if !strings.Contains(resp.Header[2], "Date of Issue: 09/03/2026") || !strings.Contains(resp.Header[2], "Due Date of Revision: N/A") {
		t.Errorf("identity row = %q", resp.Header[2])
	}
	if len(resp.Footer) != 2 || !strings.HasPrefix(resp.Footer[1], "CONTROLLED COPY - Issued to: Jane Smith (ID 42)") {
		t.Errorf("footer = %q", resp.Footer)
	}
	if !strings.Contains(resp.Footer[0], "Approved by: HOD") || !strings.Contains(resp.Footer[0], "Status: PENDING") {
		t.Errorf("footer row = %q", resp.Footer[0])
	}
}

func TestMCP_Formats(t *testing.T) {
	c, _ := newCoordinator(t)
	session := mcpSession(t, c, nil)

	text, _ := mcpCall(t, session, "ctrldoc_formats", map[string]any{})
	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Formats) != 1 || resp.Formats[0] != "docx" {
		t.Fatalf("formats = %v", resp.Formats)
	}
}

func TestMCP_History(t *testing.T) {
	db, err := observability.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ledger := observability.NewLedger(db)

	c, _ := newCoordinator(t, WithPrimary(okPrimary()), WithRecorder(ledger))
	if _, err := c.Convert(context.Background(), Request{SourcePath: writeDocx(t, "x"), Metadata: testMeta()}); err != nil {
		t.Fatal(err)
	}

	session := mcpSession(t, c, ledger)
	text, isErr := mcpCall(t, session, "ctrldoc_history", map[string]any{"doc_number": "SOP-001"})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp struct {
		Events []historyItem `json:"events"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Engine != "final" || !resp.Events[0].Success {
		t.Fatalf("events = %+v", resp.Events)
	}
}
