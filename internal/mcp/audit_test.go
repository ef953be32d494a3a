package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_NilSafety(t *testing.T) {
	t.Run("nil logger Log is no-op", func(t *testing.T) {
		var logger *AuditLogger
		// Should not panic
		logger.Log(AuditEntry{Tool: "test"})
	})

	t.Run("nil logger Close is no-op", func(t *testing.T) {
		var logger *AuditLogger
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on nil logger returned error: %v", err)
		}
	})
}

func readAuditEntries(t *testing.T, dir string) []AuditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit entry %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	logger.Log(AuditEntry{
		Timestamp:  time.Now(),
		Tool:       "rumor_simulate",
		DurationMs: 42,
		Status:     "success",
		Params:     map[string]string{"steps": "10"},
	})
	logger.Log(AuditEntry{Tool: "rumor_run", Status: "error", Error: "run not found"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries := readAuditEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "rumor_simulate" || entries[0].DurationMs != 42 || entries[0].Params["steps"] != "10" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "run not found" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	logger := NewAuditLogger(t.TempDir())
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Should not panic
	logger.Log(AuditEntry{Tool: "late"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}

	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	defer logger.Close()

	info, err := os.Stat(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("stat audit log: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "rumor_runs", DurationMs: int64(i)})
		}()
	}
	wg.Wait()
	logger.Close()

	if entries := readAuditEntries(t, dir); len(entries) != 50 {
		t.Errorf("got %d entries, want 50", len(entries))
	}
}

func TestAuditLogger_NonFatalOnBadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if logger := NewAuditLogger(filepath.Join(file, "sub")); logger != nil {
		t.Error("expected nil logger for an unusable directory")
	}
}

func TestSanitizeToolParams(t *testing.T) {
	steps := 12
	var unset *float64

	got := sanitizeToolParams(map[string]any{
		"steps":           &steps,
		"surprise_factor": unset,
		"save":            true,
		"secret":          "hunter2",
	})

	if got["steps"] != "12" {
		t.Errorf("steps = %q, want 12", got["steps"])
	}
	if _, ok := got["surprise_factor"]; ok {
		t.Error("unset pointer params should be skipped")
	}
	if got["save"] != "true" {
		t.Errorf("save = %q, want true", got["save"])
	}
	if _, ok := got["secret"]; ok {
		t.Error("unknown params must not be logged")
	}
	if got["_param_count"] != "3" {
		t.Errorf("_param_count = %q, want 3", got["_param_count"])
	}

	if sanitizeToolParams(nil) != nil {
		t.Error("nil params should give nil")
	}
}

func TestAuditTool_Integration(t *testing.T) {
	server := setupTestServer(t)
	dir := t.TempDir()
	server.auditLogger.Close()
	server.auditLogger = NewAuditLogger(dir)

	if _, _, err := server.handleRuns(context.Background(), nil, RunsInput{Limit: 3}); err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	server.auditLogger.Close()

	entries := readAuditEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Tool != "rumor_runs" || entries[0].Status != "success" || entries[0].Params["limit"] != "3" {
		t.Errorf("entry = %+v", entries[0])
	}
}
