package store

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-123"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Index: 1, Merit: 1.0, Best: 1.0, Timestamp: time.Now()},
		{Index: 2, Merit: 0.8, Best: 0.8, Timestamp: time.Now()},
		{Index: 3, Merit: 0.9, Best: 0.8, Timestamp: time.Now(), X: []float64{1, 2, 3}},
		{Index: 4, Merit: 0.4, Best: 0.4, Timestamp: time.Now()},
	}

	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	path := filepath.Join(tmpDir, "runs", runID, "trace.jsonl")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Trace file not created: %s", path)
	}
	if writer.Path() != path {
		t.Errorf("Expected path %s, got %s", path, writer.Path())
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	readEntries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(readEntries) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(readEntries))
	}

	for i, entry := range readEntries {
		if entry.Index != entries[i].Index {
			t.Errorf("Entry %d: expected index %d, got %d", i, entries[i].Index, entry.Index)
		}
		if entry.Merit != entries[i].Merit || entry.Best != entries[i].Best {
			t.Errorf("Entry %d: expected merit %f/%f, got %f/%f", i, entries[i].Merit, entries[i].Best, entry.Merit, entry.Best)
		}
		if len(entry.X) != len(entries[i].X) {
			t.Errorf("Entry %d: expected %d values, got %d", i, len(entries[i].X), len(entry.X))
		}
	}
}

func TestTraceWriter_Append(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-append"

	for i, appendMode := range []bool{false, true} {
		writer, err := NewTraceWriter(tmpDir, runID, appendMode)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		if err := writer.Write(TraceEntry{Index: i + 1, Merit: 1, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Failed to close writer: %v", err)
		}
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Index != 1 || entries[1].Index != 2 {
		t.Errorf("Unexpected indices %d, %d", entries[0].Index, entries[1].Index)
	}
}

func TestTraceWriter_TruncatesWithoutAppend(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-truncate"

	for i := 0; i < 2; i++ {
		writer, err := NewTraceWriter(tmpDir, runID, false)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		writer.Write(TraceEntry{Index: 1, Merit: float64(i), Timestamp: time.Now()})
		writer.Close()
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, _ := reader.ReadAll()
	if len(entries) != 1 || entries[0].Merit != 1 {
		t.Fatalf("Expected only the second run's entry, got %+v", entries)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-flush"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(TraceEntry{Index: 1, Merit: 0.5, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	// Entry must be visible before Close
	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entry, err := reader.Read()
	if err != nil {
		t.Fatalf("Failed to read flushed entry: %v", err)
	}
	if entry.Merit != 0.5 {
		t.Errorf("Expected merit 0.5, got %f", entry.Merit)
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceWriter_RejectsNaN(t *testing.T) {
	writer, err := NewTraceWriter(t.TempDir(), "nan", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(TraceEntry{Index: 1, Merit: math.NaN()}); err == nil {
		t.Fatal("Expected an error for a NaN merit")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-concurrent"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(index int) {
			entry := TraceEntry{Index: index, Merit: float64(index), Timestamp: time.Now()}
			if err := writer.Write(entry); err != nil {
				t.Errorf("Concurrent write failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	writer.Flush()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries, got %d", len(entries))
	}
}
