package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nikogura/resume-forge/pkg/store"
)

func TestPrintHistory(t *testing.T) {
	records := []store.CritiqueRecord{
		{Rating: 6, Domain: "fintech", Recommendations: []string{"a", "b"}, CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{Rating: 8, Domain: "general", CreatedAt: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	printHistory(&buf, "job-1", records)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "2026-03-01 09:30") || !strings.Contains(lines[0], " 6/10") {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[0], "fintech") || !strings.Contains(lines[0], "2 recommendations") {
		t.Errorf("Expected domain and recommendation count, got %q", lines[0])
	}
	if !strings.Contains(lines[1], " 8/10") || !strings.Contains(lines[1], "0 recommendations") {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, "job-1", nil)

	if got := buf.String(); got != "No critiques recorded for job-1\n" {
		t.Errorf("Expected empty-history notice, got %q", got)
	}
}
