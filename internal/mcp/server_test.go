package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"looprig/internal/config"
	mcpserver "looprig/internal/mcp"
	"looprig/internal/solver"
	"looprig/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

func testConfig(t *testing.T, cases ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	src := cfg.Path(cfg.Corpus.SourceDir)
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, c := range cases {
		if err := os.WriteFile(filepath.Join(src, c+".java"), []byte("class "+c+" {}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func seededLedger(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemStore()
	runs := []*store.Run{
		{ID: "aaaa1111-run", Selector: "all", StartedAt: "2026-10-01T10:00:00.000000Z"},
		{ID: "bbbb2222-run", Selector: "all", StartedAt: "2026-10-02T10:00:00.000000Z"},
	}
	for _, r := range runs {
		if err := st.CreateRun(r); err != nil {
			t.Fatal(err)
		}
		r.Status, r.Cases = store.StatusPassed, 1
		if err := st.FinishRun(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.AddOutcome(&store.CaseOutcome{RunID: "bbbb2222-run", Case: "GAUSS2", Files: 3}); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveArchiveDigest("bbbb2222-run", map[string]string{"all_tests/GAUSS2/output.log": "ff00"}); err != nil {
		t.Fatal(err)
	}
	return st
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool returns the tool's text content and whether it was an error.
func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text, res.IsError
		}
	}
	t.Fatalf("CallTool(%s): no text content", name)
	return "", false
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", text, err)
	}
	return v
}

func TestServer_ToolDiscovery(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer(testConfig(t), nil, "test"))

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{"list_cases": false, "list_runs": false, "get_run": false, "status_table": false, "solver_request": false}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestListCases(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer(testConfig(t, "GAUSS2", "BUBBLE"), nil, "test"))

	text, isErr := callTool(t, ctx, session, "list_cases", map[string]any{})
	if isErr {
		t.Fatalf("list_cases error: %s", text)
	}
	out := decode[struct {
		Cases []struct {
			Name string `json:"name"`
		} `json:"cases"`
		Count int `json:"count"`
	}](t, text)
	if out.Count != 2 || out.Cases[0].Name != "BUBBLE" || out.Cases[1].Name != "GAUSS2" {
		t.Errorf("list_cases = %+v", out)
	}
}

func TestRunsTools(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer(testConfig(t), seededLedger(t), "test"))

	text, isErr := callTool(t, ctx, session, "list_runs", map[string]any{"limit": 1})
	if isErr {
		t.Fatalf("list_runs error: %s", text)
	}
	runs := decode[struct {
		Runs []store.Run `json:"runs"`
	}](t, text)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != "bbbb2222-run" {
		t.Errorf("list_runs = %+v", runs)
	}

	text, isErr = callTool(t, ctx, session, "get_run", map[string]any{"run_id": "bbbb"})
	if isErr {
		t.Fatalf("get_run error: %s", text)
	}
	got := decode[struct {
		Run      store.Run           `json:"run"`
		Outcomes []store.CaseOutcome `json:"outcomes"`
		Members  map[string]string   `json:"archive_members"`
	}](t, text)
	if got.Run.ID != "bbbb2222-run" || len(got.Outcomes) != 1 || got.Members["all_tests/GAUSS2/output.log"] != "ff00" {
		t.Errorf("get_run = %+v", got)
	}

	if text, isErr := callTool(t, ctx, session, "get_run", map[string]any{"run_id": "zzzz"}); !isErr || !strings.Contains(text, "not found") {
		t.Errorf("get_run unknown id: isErr=%v text=%s", isErr, text)
	}

	text, isErr = callTool(t, ctx, session, "status_table", map[string]any{})
	if isErr || !strings.Contains(text, "aaaa1111") || !strings.Contains(text, "bbbb2222") {
		t.Errorf("status_table: isErr=%v text=%s", isErr, text)
	}
}

func TestRunsTools_NoLedger(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer(testConfig(t), nil, "test"))
	if text, isErr := callTool(t, ctx, session, "list_runs", map[string]any{}); !isErr || !strings.Contains(text, "no run ledger") {
		t.Errorf("list_runs without ledger: isErr=%v text=%s", isErr, text)
	}
}

func TestSolverRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sctx, stop := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- (&solver.Server{Variant: solver.Iterative}).Serve(sctx, ln) }()
	t.Cleanup(func() { stop(); <-served })

	cfg := testConfig(t)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	cfg.Solver.Host = host
	cfg.Solver.Port, _ = strconv.Atoi(port)

	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer(cfg, nil, "test"))
	text, isErr := callTool(t, ctx, session, "solver_request", map[string]any{"payload": "(check-sat)"})
	if isErr {
		t.Fatalf("solver_request error: %s", text)
	}
	out := decode[struct {
		Addr  string `json:"addr"`
		Reply string `json:"reply"`
	}](t, text)
	if out.Reply != solver.Ack || out.Addr != ln.Addr().String() {
		t.Errorf("solver_request = %+v", out)
	}
}
