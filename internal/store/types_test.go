package store

import (
	"errors"
	"testing"
	"time"
)

func TestReportValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Report)
		field  string
	}{
		{"valid", func(*Report) {}, ""},
		{"empty id", func(r *Report) { r.ID = "" }, "ID"},
		{"zero time", func(r *Report) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"zero width", func(r *Report) { r.Width = 0 }, "Width/Height"},
		{"total mismatch", func(r *Report) { r.Total = 10 }, "Total"},
		{"overflowing size", func(r *Report) { r.Width, r.Height, r.Total, r.Correct = 1<<32, 1<<32, 0, 0 }, "Total"},
		{"too many correct", func(r *Report) { r.Correct = 300 }, "Correct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestReport("run")
			tt.modify(r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Validate() = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestReportPassed(t *testing.T) {
	r := createTestReport("run")
	if !r.Passed() {
		t.Error("fully correct report should pass")
	}

	r.Correct = 255
	if r.Passed() {
		t.Error("report with a mismatch should not pass")
	}

	r = createTestReport("run")
	r.Steps = []StepError{{Step: "build", Error: "boom"}}
	if r.Passed() {
		t.Error("report with a failed step should not pass")
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{RunID: "abc"}
	if err.Error() != "report not found: abc" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if (&NotFoundError{}).Error() != "report not found" {
		t.Error("empty NotFoundError message")
	}
}
