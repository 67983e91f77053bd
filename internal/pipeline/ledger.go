package pipeline

import (
	"looprig/internal/logging"
	"looprig/internal/store"
)

// ledger writes run history to an optional store. Store errors are logged and
// never change the outcome of the pipeline.
type ledger struct {
	store store.Store
	run   *store.Run
}

func (l *ledger) start() {
	if l.store == nil {
		return
	}
	if err := l.store.CreateRun(l.run); err != nil {
		logging.New("ledger").Warn("record run start", "run_id", l.run.ID, "error", err)
		l.store = nil
	}
}

func (l *ledger) outcome(seq int, o RunOutcome) {
	if l.store == nil {
		return
	}
	if err := l.store.AddOutcome(o.Record(l.run.ID, seq)); err != nil {
		logging.New("ledger").Warn("record outcome", "run_id", l.run.ID, "case", o.Case, "error", err)
	}
}

func (l *ledger) finish(rep *Report, runErr error) {
	if l.store == nil {
		return
	}
	logger := logging.New("ledger")
	r := l.run
	r.Cases = len(rep.Outcomes)
	r.Failed = rep.Failed()
	r.Archive = rep.Archive
	switch {
	case runErr != nil:
		r.Status = store.StatusAborted
		r.Error = runErr.Error()
	case r.Failed > 0:
		r.Status = store.StatusFailed
	default:
		r.Status = store.StatusPassed
	}
	if err := l.store.FinishRun(r); err != nil {
		logger.Warn("record run end", "run_id", r.ID, "error", err)
	}
	if len(rep.Digest) > 0 {
		if err := l.store.SaveArchiveDigest(r.ID, rep.Digest); err != nil {
			logger.Warn("record archive digest", "run_id", r.ID, "error", err)
		}
	}
}
