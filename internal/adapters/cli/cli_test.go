package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"retail-pos/internal/app"
	"retail-pos/internal/core"
)

func TestPrintBalancesTotals(t *testing.T) {
	updated := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printBalances(&buf, []core.CrateBalance{
		{ProductID: 1, ProductName: "Tusker", CurrentBalance: 4, LastUpdated: &updated},
		{ProductID: 2, ProductName: "Pilsner", CurrentBalance: 3},
	})
	out := buf.String()
	for _, want := range []string{"Tusker", "2026-10-18", "Pilsner", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "       7") {
		t.Errorf("total not 7:\n%s", out)
	}
}

func TestPrintVerificationReportsMismatches(t *testing.T) {
	var buf bytes.Buffer
	printVerification(&buf, &app.LedgerVerificationResult{
		Checks: []core.LedgerCheck{
			{ProductName: "Tusker", Entries: 3, StoredBalance: 2, ReplayedBalance: 2},
			{ProductName: "Guinness", Entries: 2, StoredBalance: 5, ReplayedBalance: 3, Problem: "balance drift"},
		},
		Mismatches: 1,
	})
	out := buf.String()
	if !strings.Contains(out, "balance drift") || !strings.Contains(out, "1 of 2 ledgers") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReadPassword(t *testing.T) {
	got, err := readPassword(strings.NewReader("s3cret!\r\nignored\n"))
	if err != nil || got != "s3cret!" {
		t.Errorf("got %q, %v", got, err)
	}
	got, err = readPassword(strings.NewReader("no-newline"))
	if err != nil || got != "no-newline" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Diamond Ice Beer", 7); got != "Diamon…" {
		t.Errorf("got %q", got)
	}
	if got := truncate("Tusker", 30); got != "Tusker" {
		t.Errorf("got %q", got)
	}
}
