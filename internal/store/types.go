package store

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

// Mismatch is one element whose device result differs from the host.
type Mismatch struct {
	I    uint64  `json:"i"`
	J    uint64  `json:"j"`
	Got  float64 `json:"got"`
	Want float64 `json:"want"`
}

// StepError records a demo step that failed.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Report is the outcome of one verification run.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Backend   string              `json:"backend"`
	Precision string              `json:"precision"`
	Kernel    string              `json:"kernel"`
	Platform  string              `json:"platform,omitempty"`
	Device    clkernel.DeviceInfo `json:"device"`

	Width  uint64   `json:"width"`
	Height uint64   `json:"height"`
	Local  []uint64 `json:"local,omitempty"`
	Offset []uint64 `json:"offset,omitempty"`
	Seed   int64    `json:"seed"`

	Correct    int           `json:"correct"`
	Total      int           `json:"total"`
	Mismatches []Mismatch    `json:"mismatches,omitempty"`
	Steps      []StepError   `json:"failedSteps,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Passed reports whether every element matched and no step failed.
func (r *Report) Passed() bool {
	return len(r.Steps) == 0 && r.Total > 0 && r.Correct == r.Total
}

// ReportInfo is the listing view of a report.
type ReportInfo struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Backend   string    `json:"backend"`
	Device    string    `json:"device"`
	Correct   int       `json:"correct"`
	Total     int       `json:"total"`
	Passed    bool      `json:"passed"`
}

// ToInfo converts a full Report to ReportInfo.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Backend:   r.Backend,
		Device:    r.Device.Name,
		Correct:   r.Correct,
		Total:     r.Total,
		Passed:    r.Passed(),
	}
}

// Validate checks the report is consistent enough to persist.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Width == 0 || r.Height == 0 {
		return &ValidationError{Field: "Width/Height", Reason: "must be positive"}
	}
	if hi, want := bits.Mul64(r.Width, r.Height); hi != 0 || r.Total < 0 || uint64(r.Total) != want {
		return &ValidationError{
			Field:  "Total",
			Reason: fmt.Sprintf("expected %d elements for %dx%d", want, r.Width, r.Height),
		}
	}
	if r.Correct < 0 || r.Correct > r.Total {
		return &ValidationError{Field: "Correct", Reason: "must be within 0..Total"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
