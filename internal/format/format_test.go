package format_test

import (
	"strings"
	"testing"
	"time"

	"looprig/internal/format"
	"looprig/internal/store"
)

func TestASCII_UsesBoxDrawing(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Case", "Result")
	tb.Row("GAUSS2", "ok")
	out := strings.ToUpper(tb.String())
	for _, want := range []string{"CASE", "GAUSS2", "───"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMarkdown_HeaderAndSeparator(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Case", "Result")
	tb.Row("BUBBLE", "FAIL")
	tb.Footer("total", 1)
	out := tb.String()
	for _, want := range []string{"| Case", "---", "BUBBLE", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestOutcomes_Totals(t *testing.T) {
	out := format.Outcomes(format.Markdown, []*store.CaseOutcome{
		{Seq: 0, Case: "A", DurationMS: 1500, Files: 3},
		{Seq: 1, Case: "B", Failed: true, ExitCode: 1, Reason: "Exception in thread main", DurationMS: 500},
	})
	for _, want := range []string{"| 1 ", "Exception in thread main", "2 cases", "1 failed", "2.0s", "FAIL"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRuns_ShortensIDs(t *testing.T) {
	out := format.Runs(format.ASCII, []*store.Run{
		{ID: "0123456789abcdef", StartedAt: "2026-10-01T10:00:00.000000Z", Status: store.StatusPassed, Cases: 4},
	})
	if !strings.Contains(out, "01234567") || strings.Contains(out, "0123456789") {
		t.Errorf("id not shortened:\n%s", out)
	}
}

func TestDuration(t *testing.T) {
	cases := map[time.Duration]string{
		850 * time.Millisecond:  "850ms",
		3200 * time.Millisecond: "3.2s",
		65 * time.Second:        "1m 5s",
	}
	for in, want := range cases {
		if got := format.Duration(in); got != want {
			t.Errorf("Duration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("abc", 6); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("abcdef", 2); got != "ab" {
		t.Errorf("got %q", got)
	}
}
