// Package mcp exposes the corpus, the run ledger and the solver service as
// MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"looprig/internal/config"
	"looprig/internal/corpus"
	"looprig/internal/format"
	"looprig/internal/logging"
	"looprig/internal/solver"
	"looprig/internal/store"
)

// DefaultSolverTimeout bounds a solver_request round trip.
var DefaultSolverTimeout = 10 * time.Second

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	Config    *config.Config
	Store     store.Store
}

// NewServer registers every tool. st may be nil, in which case the ledger
// tools report that no ledger is configured.
func NewServer(cfg *config.Config, st store.Store, version string) *Server {
	s := &Server{Config: cfg, Store: st}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "looprig", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_cases",
		Description: "List the regression test cases found in the corpus source directory, in run order.",
	}, s.handleListCases)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recorded pipeline runs, newest first.",
	}, s.handleListRuns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_run",
		Description: "Get one pipeline run with its per-case outcomes and archive members. Accepts a full run id or a unique prefix.",
	}, s.handleGetRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "status_table",
		Description: "Render recent run history as a Markdown table.",
	}, s.handleStatusTable)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "solver_request",
		Description: "Send a raw request to the solver service and return its reply.",
	}, s.handleSolverRequest)
}

type listCasesInput struct{}

type listCasesOutput struct {
	Cases []corpus.TestCase `json:"cases"`
	Count int               `json:"count"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (0 = all)"`
}

type listRunsOutput struct {
	Runs []*store.Run `json:"runs"`
}

type getRunInput struct {
	RunID string `json:"run_id" jsonschema:"run id or unique prefix of one"`
}

type getRunOutput struct {
	Run      *store.Run           `json:"run"`
	Outcomes []*store.CaseOutcome `json:"outcomes"`
	Members  map[string]string    `json:"archive_members,omitempty"`
}

type statusTableInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of runs (default 10)"`
}

type statusTableOutput struct {
	Table string `json:"table"`
}

type solverRequestInput struct {
	Payload string `json:"payload" jsonschema:"request text sent as-is"`
	Addr    string `json:"addr,omitempty" jsonschema:"host:port of the solver (default from config)"`
}

type solverRequestOutput struct {
	Addr  string `json:"addr"`
	Reply string `json:"reply"`
}

func (s *Server) handleListCases(_ context.Context, _ *sdkmcp.CallToolRequest, _ listCasesInput) (*sdkmcp.CallToolResult, listCasesOutput, error) {
	cases, err := corpus.Load(s.Config.Path(s.Config.Corpus.SourceDir), s.Config.Corpus.Extension)
	if err != nil {
		return nil, listCasesOutput{}, fmt.Errorf("list_cases: %w", err)
	}
	if cases == nil {
		cases = []corpus.TestCase{}
	}
	return nil, listCasesOutput{Cases: cases, Count: len(cases)}, nil
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, in listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	if s.Store == nil {
		return nil, listRunsOutput{}, errNoLedger
	}
	runs, err := s.Store.ListRuns(in.Limit)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", err)
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return nil, listRunsOutput{Runs: runs}, nil
}

func (s *Server) handleGetRun(_ context.Context, _ *sdkmcp.CallToolRequest, in getRunInput) (*sdkmcp.CallToolResult, getRunOutput, error) {
	if s.Store == nil {
		return nil, getRunOutput{}, errNoLedger
	}
	run, err := s.findRun(in.RunID)
	if err != nil {
		return nil, getRunOutput{}, err
	}
	outs, err := s.Store.ListOutcomes(run.ID)
	if err != nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	if outs == nil {
		outs = []*store.CaseOutcome{}
	}
	members, err := s.Store.ArchiveDigest(run.ID)
	if err != nil {
		return nil, getRunOutput{}, fmt.Errorf("get_run: %w", err)
	}
	return nil, getRunOutput{Run: run, Outcomes: outs, Members: members}, nil
}

func (s *Server) handleStatusTable(_ context.Context, _ *sdkmcp.CallToolRequest, in statusTableInput) (*sdkmcp.CallToolResult, statusTableOutput, error) {
	if s.Store == nil {
		return nil, statusTableOutput{}, errNoLedger
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	runs, err := s.Store.ListRuns(limit)
	if err != nil {
		return nil, statusTableOutput{}, fmt.Errorf("status_table: %w", err)
	}
	return nil, statusTableOutput{Table: format.Runs(format.Markdown, runs)}, nil
}

func (s *Server) handleSolverRequest(ctx context.Context, _ *sdkmcp.CallToolRequest, in solverRequestInput) (*sdkmcp.CallToolResult, solverRequestOutput, error) {
	addr := in.Addr
	if addr == "" {
		addr = s.Config.SolverAddr()
	}
	logging.New("mcp").Info("solver request", "addr", addr, "bytes", len(in.Payload))
	c := &solver.Client{Addr: addr, Timeout: DefaultSolverTimeout}
	reply, err := c.Send(ctx, []byte(in.Payload))
	if err != nil {
		return nil, solverRequestOutput{}, fmt.Errorf("solver_request: %w", err)
	}
	return nil, solverRequestOutput{Addr: addr, Reply: string(reply)}, nil
}

var errNoLedger = errors.New("no run ledger configured")

func (s *Server) findRun(id string) (*store.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	if r, err := s.Store.GetRun(id); err != nil || r != nil {
		return r, err
	}
	runs, err := s.Store.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match *store.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}
