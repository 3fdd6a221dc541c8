package tube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FingerLiu/django-supertube/pkg/logger"
)

const defaultBatchSize = 1000

// Options control one tube run.
type Options struct {
	// StopOnError aborts at the first per-record failure. The report then
	// contains outcomes up to and including the failing record.
	StopOnError bool
	// BatchSize is the page size for source fetches. Defaults to 1000. It
	// bounds memory use and has no effect on observable results.
	BatchSize int
	// IdentityKey, when set, names the target field used to look up an
	// existing entity to update in place. When empty every record inserts
	// a new entity, matching the create-only behavior re-runs should not
	// rely on.
	IdentityKey string
	// DryRun transforms and reports without writing to the target store.
	// No identity lookup is performed either, so every successful record
	// reports created even when a live run with IdentityKey would update.
	DryRun bool
	// AutoMap adds an implicit copy rule for every field the source and
	// target share that is not already covered by an explicit mapping
	// entry. Defaults then backfill only fields the source does not
	// provide. It requires a source that can list its fields.
	AutoMap bool
	// Progress, when non-nil, is called after each processed record with
	// the number done and the source total (0 when unknown).
	Progress func(done, total int)
}

// Tube migrates all records of one source entity into one target entity.
type Tube struct {
	name     string
	source   SourceQueryable
	store    TargetStore
	target   Descriptor
	resolved *resolvedMapping
	opts     Options
}

// New validates mapping and defaults against the target descriptor and
// returns a tube ready to run. Validation failures are *ConfigError and
// occur before any record is touched.
func New(ctx context.Context, name string, source SourceQueryable, store TargetStore, target Descriptor, mapping Mapping, defaults Defaults, opts Options) (*Tube, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	var sourceFields []string
	if fl, ok := source.(FieldLister); ok {
		fields, err := fl.ListFields(ctx)
		if err != nil {
			return nil, fmt.Errorf("tube %s: list source fields: %w", name, err)
		}
		sourceFields = fields
	}

	if opts.AutoMap {
		if sourceFields == nil {
			return nil, &ConfigError{Kind: AutoMapUnsupported}
		}
		mapping = append(append(Mapping(nil), mapping...), autoMapped(target, sourceFields, mapping)...)
	}

	resolved, err := resolveMapping(target, sourceFields, mapping, defaults)
	if err != nil {
		return nil, err
	}

	return &Tube{
		name:     name,
		source:   source,
		store:    store,
		target:   target,
		resolved: resolved,
		opts:     opts,
	}, nil
}

// Name returns the tube's name as used in reports.
func (t *Tube) Name() string { return t.name }

// Run streams every source record through the mapping and persists the
// results. It always returns a report; a non-nil error means the run ended
// abnormally (source fetch fault or connectivity-class store fault) and the
// report is partial.
func (t *Tube) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New(),
		Tube:      t.name,
		StartedAt: time.Now(),
	}

	if c, ok := t.source.(Counter); ok {
		total, err := c.Count(ctx)
		if err != nil {
			report.abort(err)
			return report, fmt.Errorf("tube %s: count source records: %w", t.name, err)
		}
		report.Total = total
	}

	var writer TargetWriter
	if !t.opts.DryRun {
		w, err := t.store.Open(ctx, t.target)
		if err != nil {
			report.abort(err)
			return report, fmt.Errorf("tube %s: open target store: %w", t.name, err)
		}
		writer = w
		defer writer.Close()
	}

	start := time.Now()
	done := 0
	offset := 0
	for {
		page, err := t.source.Fetch(ctx, offset, t.opts.BatchSize)
		if err != nil {
			report.abort(err)
			return report, fmt.Errorf("tube %s: fetch page at offset %d: %w", t.name, offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			outcome, fatal := t.processRecord(ctx, writer, rec)
			report.append(outcome)
			done++
			if t.opts.Progress != nil {
				t.opts.Progress(done, report.Total)
			}
			if fatal != nil {
				report.abort(fatal)
				return report, fmt.Errorf("tube %s: record %s: %w", t.name, rec.SourceID(), fatal)
			}
			if outcome.Status == StatusFailed && t.opts.StopOnError {
				if report.Total > done {
					report.Skipped = report.Total - done
				}
				report.finish()
				logger.Warnf("tube %s halted at record %s: %s", t.name, outcome.SourceID, outcome.Err)
				return report, nil
			}
		}

		offset += len(page)
		rate := 0.0
		if secs := time.Since(start).Seconds(); secs > 0 {
			rate = float64(done) / secs
		}
		logger.Infof("tube %s: %d/%d records processed (%.2f rec/sec)", t.name, done, report.Total, rate)
	}

	report.finish()
	return report, nil
}

// processRecord transforms and persists one record. A recoverable problem
// comes back as a failed outcome; a fatal store fault is returned separately
// and ends the run.
func (t *Tube) processRecord(ctx context.Context, writer TargetWriter, rec Record) (Outcome, error) {
	values, err := t.resolved.transform(rec)
	if err != nil {
		return Outcome{SourceID: rec.SourceID(), Status: StatusFailed, Err: err.Error()}, nil
	}

	if t.opts.DryRun {
		return Outcome{SourceID: rec.SourceID(), Status: StatusCreated}, nil
	}

	status := StatusCreated
	if t.opts.IdentityKey == "" {
		err = writer.Insert(ctx, values)
	} else {
		var created bool
		created, err = writer.Upsert(ctx, t.opts.IdentityKey, values)
		if !created {
			status = StatusUpdated
		}
	}
	if err != nil {
		outcome := Outcome{SourceID: rec.SourceID(), Status: StatusFailed, Err: err.Error()}
		var fault *StoreFault
		if errors.As(err, &fault) && fault.Recoverable {
			return outcome, nil
		}
		return outcome, err
	}
	return Outcome{SourceID: rec.SourceID(), Status: status}, nil
}
