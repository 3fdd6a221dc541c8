package tube

import (
	"time"

	"github.com/google/uuid"
)

// Status is the per-record outcome of one migration attempt.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one source record.
type Outcome struct {
	SourceID string `json:"source_id"`
	Status   Status `json:"status"`
	Err      string `json:"error,omitempty"`
}

// RunReport is the finalized result of one tube run. It holds one outcome
// per processed record, in processing order, plus aggregate counts.
type RunReport struct {
	RunID    uuid.UUID `json:"run_id"`
	Tube     string    `json:"tube"`
	Outcomes []Outcome `json:"outcomes"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	// Skipped counts records never reached after a stop-on-error halt.
	// It is known only when the source can count itself.
	Skipped int `json:"skipped"`
	// Total is the source record count when the source can report it.
	Total int `json:"total,omitempty"`
	// Abnormal marks a run that ended on a fatal fault; the outcome list is
	// then partial.
	Abnormal   bool      `json:"abnormal,omitempty"`
	Err        string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded is the number of records persisted (or, in a dry run, that
// would have been).
func (r *RunReport) Succeeded() int { return r.Created + r.Updated }

func (r *RunReport) append(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusCreated:
		r.Created++
	case StatusUpdated:
		r.Updated++
	case StatusFailed:
		r.Failed++
	}
}

func (r *RunReport) finish() {
	r.FinishedAt = time.Now()
}

func (r *RunReport) abort(err error) {
	r.Abnormal = true
	r.Err = err.Error()
	r.finish()
}

// SequenceReport aggregates the run reports of one TubeSet execution.
type SequenceReport struct {
	Runs   []*RunReport `json:"runs"`
	Halted bool         `json:"halted"`
	// HaltedAt is the 1-based position of the tube that halted the set;
	// 0 when the set ran to completion.
	HaltedAt int `json:"halted_at,omitempty"`
}

// Failed reports whether any run in the sequence recorded a failure or
// ended abnormally.
func (s *SequenceReport) Failed() bool {
	for _, r := range s.Runs {
		if r.Failed > 0 || r.Abnormal {
			return true
		}
	}
	return false
}
