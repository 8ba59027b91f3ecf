package store

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

func TestEventWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewEventWriter(tmpDir, "run-1")
	if err != nil {
		t.Fatalf("Failed to create event writer: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	events := []clkernel.Event{
		{Time: now, Level: slog.LevelInfo, Component: "clkernel", Op: "init", Message: "initializing"},
		{Time: now, Level: slog.LevelWarn, Component: "clkernel", Op: "init", Message: "switching over to CPU"},
		{Time: now, Level: slog.LevelError, Component: "clkernel", Op: "build", Message: "kernel compilation failed", Err: "boom"},
	}
	for _, e := range events {
		writer.Observe(e)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	expected := filepath.Join(tmpDir, "runs", "run-1", "events.jsonl")
	if writer.Path() != expected {
		t.Errorf("Path() = %q, want %q", writer.Path(), expected)
	}
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("Event log not created: %v", err)
	}

	reader, err := NewEventReader(tmpDir, "run-1")
	if err != nil {
		t.Fatalf("Failed to create event reader: %v", err)
	}
	defer reader.Close()

	read, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(read) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(read))
	}
	for i := range events {
		if read[i].Level != events[i].Level || read[i].Message != events[i].Message || read[i].Err != events[i].Err {
			t.Errorf("event %d = %+v, want %+v", i, read[i], events[i])
		}
		if !read[i].Time.Equal(events[i].Time) {
			t.Errorf("event %d time = %v, want %v", i, read[i].Time, events[i].Time)
		}
	}
}

func TestEventReader_NotFound(t *testing.T) {
	_, err := NewEventReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestEventReader_Corrupted(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "runs", "bad")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte("not json\n"), 0644)

	reader, err := NewEventReader(tmpDir, "bad")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := reader.ReadAll(); err == nil {
		t.Error("Expected error for corrupted event line")
	}
}
