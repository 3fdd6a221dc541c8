package tube

import (
	"context"

	"github.com/FingerLiu/django-supertube/pkg/logger"
)

// SetOptions control one TubeSet execution.
type SetOptions struct {
	// StopOnError halts the set before the next tube starts when a finished
	// tube reported any failed record or ended abnormally.
	StopOnError bool
}

// TubeSet runs tubes strictly in order. A tube only starts after the
// previous one has fully finished, so later tubes may depend on rows the
// earlier ones wrote.
type TubeSet struct {
	tubes []*Tube
}

// NewSet returns a TubeSet over the given tubes, run in argument order.
func NewSet(tubes ...*Tube) *TubeSet {
	return &TubeSet{tubes: tubes}
}

// Add appends a tube to the end of the set.
func (s *TubeSet) Add(t *Tube) {
	s.tubes = append(s.tubes, t)
}

// RunAll executes every tube sequentially and aggregates their reports.
// Fatal tube faults do not propagate; they are visible on the affected run
// report and, under StopOnError, halt the set.
func (s *TubeSet) RunAll(ctx context.Context, opts SetOptions) *SequenceReport {
	seq := &SequenceReport{}
	for i, t := range s.tubes {
		report, err := t.Run(ctx)
		seq.Runs = append(seq.Runs, report)
		if err != nil {
			logger.Errorf("tube %s ended abnormally: %v", t.Name(), err)
		}
		if opts.StopOnError && (err != nil || report.Failed > 0 || report.Abnormal) {
			seq.Halted = true
			seq.HaltedAt = i + 1
			logger.Warnf("tube set halted after tube %d (%s)", i+1, t.Name())
			break
		}
	}
	return seq
}
