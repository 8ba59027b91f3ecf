package clkernel

import (
	"context"
	"log/slog"
	"time"
)

// Event is one diagnostic emitted by the wrapper.
type Event struct {
	Time      time.Time  `json:"time"`
	Level     slog.Level `json:"level"`
	Component string     `json:"component"`
	Op        string     `json:"op"`
	Message   string     `json:"message"`
	Err       string     `json:"error,omitempty"`
}

// Observer receives every Event in emission order.
type Observer func(Event)

// Recorder collects events in memory.
type Recorder struct {
	Events []Event
}

// Observe is an Observer appending to r.Events.
func (r *Recorder) Observe(e Event) {
	r.Events = append(r.Events, e)
}

// Ops returns the operations of all events at or above level.
func (r *Recorder) Ops(level slog.Level) []string {
	var ops []string
	for _, e := range r.Events {
		if e.Level >= level {
			ops = append(ops, e.Op)
		}
	}
	return ops
}

const component = "clkernel"

// info is the level of progress diagnostics; verbose mode raises them from Debug.
func (k *Kernel) info() slog.Level {
	if k.verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (k *Kernel) emit(level slog.Level, op, msg string, err error, attrs ...any) {
	e := Event{
		Time:      time.Now(),
		Level:     level,
		Component: component,
		Op:        op,
		Message:   msg,
	}
	if err != nil {
		e.Err = err.Error()
		attrs = append(attrs, "error", err)
	}
	if k.observer != nil {
		k.observer(e)
	}
	k.logger.Log(context.Background(), level, msg, append([]any{"op", op}, attrs...)...)
}

// fail emits err at error level and returns it.
func (k *Kernel) fail(op, msg string, err error, attrs ...any) error {
	k.emit(slog.LevelError, op, msg, err, attrs...)
	return err
}
