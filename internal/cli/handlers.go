package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/FingerLiu/django-supertube/internal/adapters"
	"github.com/FingerLiu/django-supertube/internal/config"
	"github.com/FingerLiu/django-supertube/internal/tube"
	"github.com/FingerLiu/django-supertube/pkg/database"
	"github.com/FingerLiu/django-supertube/pkg/logger"
)

func runMigration(ctx context.Context, opts *MigrateOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	plan, err := config.LoadPlan(opts.PlanFile)
	if err != nil {
		return err
	}

	sourceDialect, err := adapters.DialectFor(cfg.SourceDriver)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	sourceDB, err := database.ConnectSQL(cfg.SourceDriver, cfg.SourceDSN)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	var store tube.TargetStore
	var sqlTarget *adapters.SQLTarget
	if cfg.TargetDriver == "mongo" {
		client, err := database.ConnectMongo(cfg.TargetDSN)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)
		store = &adapters.MongoTarget{Client: client, Database: cfg.MongoDatabase}
	} else {
		targetDialect, err := adapters.DialectFor(cfg.TargetDriver)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		targetDB, err := database.ConnectSQL(cfg.TargetDriver, cfg.TargetDSN)
		if err != nil {
			return err
		}
		defer targetDB.Close()
		sqlTarget = &adapters.SQLTarget{DB: targetDB, Dialect: targetDialect}
		store = sqlTarget
	}

	set := tube.NewSet()
	for _, tp := range plan.Tubes {
		t, err := buildTube(ctx, tp, sourceDB, sourceDialect, store, opts)
		if err != nil {
			return err
		}
		set.Add(t)
	}

	if opts.DryRun {
		logger.Warnf("running plan %q in dry-run mode, no data will be written", plan.Name)
	}

	seq := set.RunAll(ctx, tube.SetOptions{StopOnError: plan.StopOnError || opts.StopOnError})
	printSummary(os.Stdout, seq)

	if sqlTarget != nil && !opts.DryRun {
		resetSequences(ctx, sqlTarget, plan)
	}

	if seq.Halted {
		return fmt.Errorf("migration halted at tube %d", seq.HaltedAt)
	}
	if seq.Failed() {
		return fmt.Errorf("migration finished with failed records")
	}
	return nil
}

type sequenceResetter interface {
	ResetSequence(ctx context.Context, table, column string) error
}

// resetSequences realigns every serial sequence the plan names. It runs even
// after a halted or partially failed set, since earlier tubes may already
// have written rows; a failing reset is logged and does not stop the rest.
func resetSequences(ctx context.Context, r sequenceResetter, plan *config.Plan) {
	for _, tp := range plan.Tubes {
		if tp.Target.ResetSequence == "" {
			continue
		}
		if err := r.ResetSequence(ctx, tp.Target.Entity, tp.Target.ResetSequence); err != nil {
			logger.Errorf("reset sequence for %s.%s: %v", tp.Target.Entity, tp.Target.ResetSequence, err)
			continue
		}
		logger.Infof("reset sequence for %s.%s", tp.Target.Entity, tp.Target.ResetSequence)
	}
}

func buildTube(ctx context.Context, tp config.TubePlan, sourceDB *sql.DB, sourceDialect adapters.Dialect, store tube.TargetStore, opts *MigrateOptions) (*tube.Tube, error) {
	source := &adapters.SQLSource{
		DB:      sourceDB,
		Dialect: sourceDialect,
		Table:   tp.Source.Table,
		Key:     tp.Source.Key,
		Filter:  tp.Source.Filter,
	}

	var desc tube.Descriptor
	if len(tp.Target.Fields) > 0 {
		desc = tube.Descriptor{Entity: tp.Target.Entity, Fields: tp.Target.Fields}
	} else if dp, ok := store.(tube.DescriptorProvider); ok {
		d, err := dp.Describe(ctx, tp.Target.Entity)
		if err != nil {
			return nil, fmt.Errorf("tube %q: %w", tp.Name, err)
		}
		desc = d
	} else {
		return nil, fmt.Errorf("tube %q: target store cannot describe %q, declare target.fields in the plan", tp.Name, tp.Target.Entity)
	}

	mapping, err := tp.ToMapping()
	if err != nil {
		return nil, err
	}

	batch := tp.BatchSize
	if opts.BatchSize > 0 {
		batch = opts.BatchSize
	}
	return tube.New(ctx, tp.Name, source, store, desc, mapping, tube.Defaults(tp.Defaults), tube.Options{
		StopOnError: tp.StopOnError || opts.StopOnError,
		BatchSize:   batch,
		IdentityKey: tp.IdentityKey,
		DryRun:      opts.DryRun,
		AutoMap:     tp.AutoMap,
	})
}

func printSummary(w io.Writer, seq *tube.SequenceReport) {
	for _, run := range seq.Runs {
		logger.Infof("tube %s: %d created, %d updated, %d failed, %d skipped (of %d)",
			run.Tube, run.Created, run.Updated, run.Failed, run.Skipped, run.Total)
	}
	out, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		logger.Errorf("failed to render sequence report: %v", err)
		return
	}
	fmt.Fprintln(w, string(out))
	logger.Infof("%d tube(s) ran", len(seq.Runs))
}
