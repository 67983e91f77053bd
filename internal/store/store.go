// Package store keeps the history of pipeline runs: one row per run, one row
// per test case outcome, and the member digests of the archive each run wrote.
package store

// DefaultDBPath is the default relative path for the SQLite DB. Open creates
// the parent directory.
const DefaultDBPath = ".looprig/looprig.db"

// Run statuses.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"  // every case ran without stderr output
	StatusFailed  = "failed"  // at least one case reported a failure
	StatusAborted = "aborted" // build, provisioning, collection or archiving stopped the run
)

// Run is one pipeline invocation.
type Run struct {
	ID        string `json:"id"`
	Selector  string `json:"selector"`
	Status    string `json:"status"`
	Cases     int    `json:"cases"`
	Failed    int    `json:"failed"`
	Archive   string `json:"archive,omitempty"`
	Error     string `json:"error,omitempty"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

// CaseOutcome is the recorded result of running the artifact for one case.
type CaseOutcome struct {
	RunID      string `json:"run_id"`
	Seq        int    `json:"seq"`
	Case       string `json:"case"`
	ExitCode   int    `json:"exit_code"`
	Failed     bool   `json:"failed"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	BundleDir  string `json:"bundle_dir,omitempty"`
	Files      int    `json:"files"`
}

// Store is the persistence facade for the run ledger. The pipeline and CLI use
// only this interface; the implementation is SQLite or in-memory.
type Store interface {
	CreateRun(r *Run) error
	FinishRun(r *Run) error
	GetRun(id string) (*Run, error)
	// ListRuns returns the most recent runs first; limit <= 0 means all.
	ListRuns(limit int) ([]*Run, error)

	AddOutcome(o *CaseOutcome) error
	ListOutcomes(runID string) ([]*CaseOutcome, error)

	SaveArchiveDigest(runID string, sums map[string]string) error
	ArchiveDigest(runID string) (map[string]string, error)

	Close() error
}
