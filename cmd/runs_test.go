package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/varopt/internal/store"
	"github.com/spf13/cobra"
)

// testCommand returns a command whose output is captured in the returned buffer.
func testCommand(input string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(input))
	return cmd, out
}

// withDataDir points the shared --data-dir flag at dir for the duration of a test.
func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = original })
}

func saveTestRun(t *testing.T, s *store.FSStore, id string, age time.Duration) {
	t.Helper()
	r := store.NewRunRecord(id, "circle", "circle.hcl", "gonum:Nelder-Mead")
	r.FreePaths = []string{"X"}
	r.X0 = []float64{3}
	r.X = []float64{5}
	r.FinalMerit = 0.25
	r.Evaluations = 42
	r.Timestamp = time.Now().Add(-age)
	if err := s.Save(r); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectRunsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].ID != "run1" || toDelete[1].ID != "run4" {
		t.Errorf("Expected run1 and run4, got %s and %s", toDelete[0].ID, toDelete[1].ID)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0)

	// oldest first
	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].ID != "run4" || toDelete[1].ID != "run1" {
		t.Errorf("Expected run4 and run1, got %s and %s", toDelete[0].ID, toDelete[1].ID)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "run5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Age selects run1 and run4; keeping 2 adds run2 without duplicates.
	toDelete := selectRunsForDeletion(infos, 2, 7)

	if len(toDelete) != 3 {
		t.Fatalf("Expected 3 runs to delete, got %d", len(toDelete))
	}
	seen := map[string]bool{}
	for _, info := range toDelete {
		if seen[info.ID] {
			t.Errorf("Run %s selected twice", info.ID)
		}
		seen[info.ID] = true
	}
	if !seen["run1"] || !seen["run2"] || !seen["run4"] {
		t.Errorf("Unexpected selection: %v", seen)
	}
}

func TestSelectRunsForDeletion_KeepMoreThanExist(t *testing.T) {
	infos := []store.RunInfo{{ID: "run1", Timestamp: time.Now()}}
	if toDelete := selectRunsForDeletion(infos, 5, 0); len(toDelete) != 0 {
		t.Errorf("Expected nothing to delete, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	content := []byte("Hello, World!")
	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("Expected abc, got %s", got)
	}
	if got := shortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("Expected truncated ID, got %s", got)
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	withDataDir(t, t.TempDir())

	cmd, out := testCommand("")
	if err := runListRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No runs found.") {
		t.Errorf("Unexpected output: %s", out.String())
	}
}

func TestRunsListCommand_WithRuns(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, runStore, "test-run-id", 0)
	withDataDir(t, tmpDir)

	cmd, out := testCommand("")
	if err := runListRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"test-run-id", "gonum:Nelder-Mead", "Total runs: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestRunsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, runStore, "shown", 0)

	tw, err := store.NewTraceWriter(tmpDir, "shown", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	tw.Write(store.TraceEntry{Index: 1, Merit: 2, Best: 2})
	tw.Write(store.TraceEntry{Index: 2, Merit: 3, Best: 2})
	tw.Close()

	withDataDir(t, tmpDir)

	cmd, out := testCommand("")
	if err := runShowRun(cmd, []string{"shown"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"run:       shown", "X", "trace: 2 evaluations, best 2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}

	if err := runShowRun(cmd, []string{"missing"}); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())
	keepLast = 0
	olderThanDays = 0

	cmd, _ := testCommand("")
	if err := runCleanRuns(cmd, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, runStore, "old-run", 30*24*time.Hour)
	saveTestRun(t, runStore, "new-run", 0)
	withDataDir(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() { olderThanDays, forceClean = 0, false }()

	cmd, _ := testCommand("")
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := runStore.Load("old-run"); err == nil {
		t.Error("Expected old run to be deleted")
	}
	if _, err := runStore.Load("new-run"); err != nil {
		t.Errorf("Expected new run to survive, got %v", err)
	}
}

func TestRunsCleanCommand_Aborted(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, runStore, "old-run", 30*24*time.Hour)
	withDataDir(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = false
	defer func() { olderThanDays = 0 }()

	cmd, out := testCommand("n\n")
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort, got:\n%s", out.String())
	}
	if _, err := runStore.Load("old-run"); err != nil {
		t.Errorf("Expected run to survive an aborted clean, got %v", err)
	}
}
