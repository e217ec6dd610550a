package main

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/cwbudde/varopt/internal/store"
)

// savedRun runs the problem at path with --save and returns the stored record.
func savedRun(t *testing.T, dir, path string) *store.RunRecord {
	t.Helper()
	saveRun = true
	defer func() { saveRun = false }()

	cmd, _ := testCommand("")
	if err := runOptimization(cmd, []string{path}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	runStore, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	infos, err := runStore.List()
	if err != nil || len(infos) == 0 {
		t.Fatalf("Expected a stored run, got %v", err)
	}
	record, err := runStore.Load(infos[len(infos)-1].ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return record
}

func TestResumeCommand(t *testing.T) {
	resetRunFlags(t)
	tmpDir := t.TempDir()
	withDataDir(t, tmpDir)

	path := writeProblem(t, circleProblem)
	previous := savedRun(t, tmpDir, path)

	cmd, out := testCommand("")
	if err := runResume(cmd, []string{previous.ID}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !strings.Contains(out.String(), "resumed from "+previous.ID) {
		t.Fatalf("Unexpected output:\n%s", out.String())
	}

	runStore, _ := store.NewFSStore(tmpDir)
	infos, err := runStore.List()
	if err != nil || len(infos) != 2 {
		t.Fatalf("Expected two stored runs, got %d (%v)", len(infos), err)
	}
	var resumed *store.RunRecord
	for _, info := range infos {
		if info.ID != previous.ID {
			resumed, err = runStore.Load(info.ID)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
		}
	}

	for i := range previous.X {
		if resumed.X0[i] != previous.X[i] {
			t.Errorf("Resumed start %v does not match previous result %v", resumed.X0, previous.X)
		}
	}
	if math.Abs(resumed.InitialMerit-previous.FinalMerit) > 1e-12 {
		t.Errorf("Expected initial merit %g, got %g", previous.FinalMerit, resumed.InitialMerit)
	}
}

func TestResumeCommand_UnknownRun(t *testing.T) {
	resetRunFlags(t)
	withDataDir(t, t.TempDir())

	cmd, _ := testCommand("")
	err := runResume(cmd, []string{"missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResumeCommand_FreeValuesChanged(t *testing.T) {
	resetRunFlags(t)
	tmpDir := t.TempDir()
	withDataDir(t, tmpDir)

	path := writeProblem(t, circleProblem)
	previous := savedRun(t, tmpDir, path)

	// Y is no longer free.
	changed := strings.Replace(circleProblem, "value = 20\n  free  = true", "value = 20", 1)
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatalf("Failed to rewrite problem: %v", err)
	}

	cmd, _ := testCommand("")
	err := runResume(cmd, []string{previous.ID})
	if err == nil || !strings.Contains(err.Error(), "free values") {
		t.Errorf("Expected a free value mismatch, got %v", err)
	}
}
