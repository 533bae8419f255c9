package migration

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
	"github.com/imtaco/sqlcrossover/target"
)

// DefaultBatchSize is the number of rows per page when none is configured
const DefaultBatchSize = 10000

// Config holds all configuration for the migration
type Config struct {
	// SourceConnStr is dialed by RunMigration when set; otherwise SourceDB
	// must already be connected and stays open afterwards
	SourceConnStr string
	SourceDB      source.SourceDB
	Target        target.Target
	AllTables     bool
	TargetTables  []string
	BatchSize     int
	// Transactional runs the whole copy in one target transaction. The zero
	// value is false, so library callers must opt in; the command line
	// defaults it to true.
	Transactional bool
	CreateSchema  bool
	CyclePolicy   CyclePolicy
}

// Report summarizes a run. It is returned even when the run fails, showing
// how far it got.
type Report struct {
	Order   []string
	Levels  [][]string
	Cycles  [][]string
	Tables  []TableResult
	Skipped []*schema.AdoptionError
	Rows    int
	// Fetches counts source page reads across all tables
	Fetches int
	// Committed is false when a transactional run was rolled back
	Committed bool
	Elapsed   time.Duration
}

// Failed returns the result of the table that stopped the run, if any
func (r *Report) Failed() *TableResult {
	for i := range r.Tables {
		if r.Tables[i].State == StateFailed {
			return &r.Tables[i]
		}
	}
	return nil
}

// plan is everything decided before the first row moves
type plan struct {
	order  []*schema.Table
	cycles [][]string
}

// RunMigration copies the selected tables from config.SourceDB into
// config.Target, parents before children.
func RunMigration(ctx context.Context, config *Config) (*Report, error) {
	report := &Report{}
	totalStart := time.Now()
	defer func() { report.Elapsed = time.Since(totalStart) }()

	if config.SourceDB == nil || config.Target == nil {
		return report, &schema.ConfigError{Msg: "source and target are required"}
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchSize < 0 {
		return report, &schema.ConfigError{Msg: fmt.Sprintf("batch size must be positive, got %d", config.BatchSize)}
	}

	if config.SourceConnStr != "" {
		if err := config.SourceDB.Connect(ctx, config.SourceConnStr); err != nil {
			return report, err
		}
		defer config.SourceDB.Close()
	}
	if err := config.SourceDB.Ping(ctx); err != nil {
		return report, err
	}

	p, err := preflight(ctx, config)
	if err != nil {
		return report, err
	}

	report.Cycles = p.cycles
	for _, t := range p.order {
		report.Order = append(report.Order, t.Name)
	}
	report.Levels = Levels(p.order)
	log.Printf("Found %d dependency levels", len(report.Levels))
	for i, level := range report.Levels {
		log.Printf("Level %d: %s", i, strings.Join(level, ", "))
	}
	if config.Transactional {
		log.Printf("Running in a single transaction on %s", config.Target.Name())
	} else {
		log.Printf("Running without a run transaction; each batch commits on its own")
	}

	c := &copier{src: config.SourceDB, tgt: config.Target, pageSize: config.BatchSize}
	err = withScope(ctx, config.SourceDB, config.Target, config.Transactional, func(q source.Querier) error {
		if config.CreateSchema {
			if err := config.Target.(target.SchemaCreator).CreateAll(ctx, p.order); err != nil {
				return err
			}
		}
		if len(p.cycles) > 0 {
			if err := config.Target.(target.ConstraintDeferrer).DeferConstraints(ctx); err != nil {
				return err
			}
		}
		return migrateTables(ctx, c, q, p.order, report)
	})
	report.Fetches = c.fetches
	if err != nil {
		return report, err
	}

	report.Committed = true
	log.Printf("Data migration completed successfully: %d rows in %.2f seconds", report.Rows, time.Since(totalStart).Seconds())
	return report, nil
}

// preflight validates everything that can be checked before writing, so a
// misconfigured run fails without touching the target.
func preflight(ctx context.Context, config *Config) (*plan, error) {
	policy, err := ParseCyclePolicy(string(config.CyclePolicy))
	if err != nil {
		return nil, &schema.ConfigError{Msg: err.Error()}
	}

	tables, err := config.SourceDB.GetTables(ctx)
	if err != nil {
		return nil, err
	}
	tables, err = selectTables(tables, config.AllTables, config.TargetTables)
	if err != nil {
		return nil, err
	}

	if config.Transactional {
		if _, ok := config.Target.(target.Transactional); !ok {
			return nil, &schema.UnsupportedError{Operation: "transactional run", Target: config.Target.Name()}
		}
	}
	if config.CreateSchema {
		if _, ok := config.Target.(target.SchemaCreator); !ok {
			return nil, &schema.UnsupportedError{Operation: "schema creation", Target: config.Target.Name()}
		}
		for _, t := range tables {
			if !t.Complete() {
				return nil, &schema.ConfigError{Msg: fmt.Sprintf("table %s lacks the structure needed to create it", t.Name)}
			}
		}
	}

	ordered, cycles, err := ResolveOrder(tables, policy)
	if err != nil {
		return nil, err
	}
	if len(cycles) > 0 {
		if _, ok := config.Target.(target.ConstraintDeferrer); !ok || config.Target.Dialect().DeferConstraints() == "" {
			return nil, &schema.UnsupportedError{Operation: "deferred foreign keys", Target: config.Target.Name()}
		}
	}
	return &plan{order: ordered, cycles: cycles}, nil
}

// migrateTables copies tables one after another in dependency order. A table
// the target will not adopt is skipped; any other failure ends the run.
func migrateTables(ctx context.Context, c *copier, q source.Querier, order []*schema.Table, report *Report) error {
	for _, table := range order {
		if !c.tgt.CouldAdopt(ctx, table.Name, table) {
			skip := &schema.AdoptionError{Table: table.Name, Reason: "target " + c.tgt.Name() + " cannot adopt it"}
			log.Printf("[Table %s] Skipped: %v", table.Name, skip)
			report.Skipped = append(report.Skipped, skip)
			report.Tables = append(report.Tables, TableResult{Table: table.Name, State: StateSkipped, Err: skip})
			continue
		}

		log.Printf("[Table %s] Starting migration", table.Name)
		res := c.copyTable(ctx, q, table)
		report.Tables = append(report.Tables, res)
		report.Rows += res.Rows
		if res.State == StateFailed {
			return fmt.Errorf("failed to migrate table %s: %w", table.Name, res.Err)
		}

		rowsPerSec := 0.0
		if secs := res.Elapsed.Seconds(); secs > 0 {
			rowsPerSec = float64(res.Rows) / secs
		}
		log.Printf("[Table %s] Migration completed: %d rows in %d pages, %.2f seconds (%.0f rows/sec)",
			table.Name, res.Rows, res.Pages, res.Elapsed.Seconds(), rowsPerSec)
	}
	return nil
}
