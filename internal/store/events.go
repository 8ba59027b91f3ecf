package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

const eventsFile = "events.jsonl"

// EventWriter appends wrapper diagnostics to <baseDir>/runs/<runID>/events.jsonl.
type EventWriter struct {
	file   *os.File
	writer *bufio.Writer
	path   string
	err    error
}

// NewEventWriter creates the event log of a run, truncating any existing one.
func NewEventWriter(baseDir, runID string) (*EventWriter, error) {
	runDir := filepath.Join(baseDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(runDir, eventsFile)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &EventWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends one event as a JSON line.
func (ew *EventWriter) Write(e clkernel.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := ew.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := ew.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Observe adapts the writer to clkernel.Observer. The first write error is
// kept and returned by Close.
func (ew *EventWriter) Observe(e clkernel.Event) {
	if ew.err != nil {
		return
	}
	ew.err = ew.Write(e)
}

// Close flushes buffered events and closes the file.
func (ew *EventWriter) Close() error {
	if err := ew.writer.Flush(); err != nil {
		ew.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := ew.file.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return ew.err
}

// Path returns the filesystem path to the event log.
func (ew *EventWriter) Path() string {
	return ew.path
}

// EventReader reads events back from a run's event log.
type EventReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewEventReader opens the event log of a run.
func NewEventReader(baseDir, runID string) (*EventReader, error) {
	path := filepath.Join(baseDir, "runs", runID, eventsFile)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &EventReader{file: file, scanner: scanner}, nil
}

// Read returns the next event, or io.EOF.
func (er *EventReader) Read() (*clkernel.Event, error) {
	if !er.scanner.Scan() {
		if err := er.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan event line: %w", err)
		}
		return nil, io.EOF
	}

	var e clkernel.Event
	if err := json.Unmarshal(er.scanner.Bytes(), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &e, nil
}

// ReadAll reads every remaining event.
func (er *EventReader) ReadAll() ([]clkernel.Event, error) {
	var events []clkernel.Event
	for {
		e, err := er.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// Close closes the event log.
func (er *EventReader) Close() error {
	if err := er.file.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}
