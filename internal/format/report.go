package format

import (
	"fmt"
	"time"

	"looprig/internal/store"
)

const reasonWidth = 60

// Outcomes renders the per-case results of one run with a totals footer.
func Outcomes(m Mode, outs []*store.CaseOutcome) string {
	tb := NewTable(m)
	tb.Header("#", "Case", "Result", "Exit", "Duration", "Files", "Reason")
	failed := 0
	var total time.Duration
	for _, o := range outs {
		if o.Failed {
			failed++
		}
		d := time.Duration(o.DurationMS) * time.Millisecond
		total += d
		tb.Row(o.Seq+1, o.Case, Mark(!o.Failed), o.ExitCode, Duration(d), o.Files, Truncate(o.Reason, reasonWidth))
	}
	tb.Footer("", fmt.Sprintf("%d cases", len(outs)), fmt.Sprintf("%d failed", failed), "", Duration(total), "", "")
	tb.Columns(
		ColumnConfig{Number: 1, Align: AlignRight},
		ColumnConfig{Number: 4, Align: AlignRight},
		ColumnConfig{Number: 6, Align: AlignRight},
	)
	return tb.String()
}

// Runs renders ledger history, newest first as given.
func Runs(m Mode, runs []*store.Run) string {
	tb := NewTable(m)
	tb.Header("Run", "Started", "Status", "Cases", "Failed", "Archive", "Error")
	for _, r := range runs {
		tb.Row(shortID(r.ID), r.StartedAt, r.Status, r.Cases, r.Failed, r.Archive, Truncate(r.Error, reasonWidth))
	}
	tb.Columns(
		ColumnConfig{Number: 4, Align: AlignRight},
		ColumnConfig{Number: 5, Align: AlignRight},
	)
	return tb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
