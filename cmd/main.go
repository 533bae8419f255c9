package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/mapper"
	"github.com/imtaco/sqlcrossover/migration"
	"github.com/imtaco/sqlcrossover/source"
	"github.com/imtaco/sqlcrossover/source/mssql"
	"github.com/imtaco/sqlcrossover/source/mysql"
	"github.com/imtaco/sqlcrossover/source/postgres"
	"github.com/imtaco/sqlcrossover/source/sqlite"
	"github.com/imtaco/sqlcrossover/target"
)

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sqlcrossover",
		Short: "Copy tables between relational databases, parents before children",
		Long: `sqlcrossover reads the schema of a source database, orders its tables by
foreign key dependencies and copies every row into a live target database or
into a SQL dump file, page by page.

Supported engines: postgres, mysql, sqlite, mssql.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration
			config, err := LoadConfig(v, cfgFile)
			if err != nil {
				return err
			}

			// Validate configuration
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), config)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./sqlcrossover.yaml)")
	flags.String("source-type", "", "source engine: postgres, mysql, sqlite or mssql")
	flags.String("source", "", "source connection string")
	flags.String("source-schema", "", "source schema (postgres, mssql)")
	flags.String("target-type", "", "target engine for a live target")
	flags.String("target", "", "target connection string")
	flags.String("dump-file", "", "write a SQL dump here instead of a live target (- for stdout)")
	flags.String("dump-dialect", "", "dialect of the dump file")
	flags.StringSlice("tables", nil, "tables to copy (default all)")
	flags.Int("batch-size", migration.DefaultBatchSize, "rows per page")
	flags.Bool("transactional", true, "copy everything in one transaction")
	flags.Bool("create-schema", false, "create target tables before copying")
	flags.String("cycle-policy", string(migration.CycleFail), "foreign key cycles: fail or defer")
	flags.String("name-case", "", "rename tables and columns: lower, upper, snake, camel, pascal or kebab")

	for key, flag := range map[string]string{
		"source.type":      "source-type",
		"source.conn_str":  "source",
		"source.schema":    "source-schema",
		"target.type":      "target-type",
		"target.conn_str":  "target",
		"target.dump_file": "dump-file",
		"target.dialect":   "dump-dialect",
		"tables":           "tables",
		"batch_size":       "batch-size",
		"transactional":    "transactional",
		"create_schema":    "create-schema",
		"cycle_policy":     "cycle-policy",
		"name_case":        "name-case",
	} {
		bindFlag(v, key, cmd, flag)
	}
	return cmd
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func main() {
	// a missing .env is fine; the environment may already be set
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env.local")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Printf("Migration failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, config *Config) error {
	// Initialize source database based on type
	sourceDB, err := newSource(config.Source.Type, config.Source.Schema)
	if err != nil {
		return err
	}

	nameMapper, err := mapper.New(config.NameCase, config.TableMap, config.ColumnMap)
	if err != nil {
		return err
	}
	targetDialect, err := config.TargetDialect()
	if err != nil {
		return err
	}

	var tgt target.Target
	if config.Target.ConnStr != "" {
		live, err := target.Open(ctx, targetDialect, config.Target.ConnStr, nameMapper)
		if err != nil {
			return err
		}
		defer live.Close()
		tgt = live
	} else {
		out, err := openDump(config.Target.DumpFile)
		if err != nil {
			return err
		}
		defer out.Close()
		dump := target.NewDumpTarget(out, targetDialect, nameMapper)
		defer dump.Close()
		tgt = dump
	}

	// Build migration configuration
	migrationConfig := &migration.Config{
		SourceConnStr: config.Source.ConnStr,
		SourceDB:      sourceDB,
		Target:        tgt,
		AllTables:     config.AllTables,
		TargetTables:  config.Tables,
		BatchSize:     config.BatchSize,
		Transactional: config.Transactional,
		CreateSchema:  config.CreateSchema,
		CyclePolicy:   migration.CyclePolicy(config.CyclePolicy),
	}

	// Execute migration
	report, err := migration.RunMigration(ctx, migrationConfig)
	printSummary(os.Stderr, report, err)
	return err
}

func newSource(kind, schemaName string) (source.SourceDB, error) {
	d, err := dialect.Lookup(kind)
	if err != nil {
		return nil, fmt.Errorf("unsupported source database type: %w", err)
	}
	switch d.Name() {
	case "postgres":
		return postgres.New(schemaName), nil
	case "mysql":
		return mysql.New(), nil
	case "sqlite":
		return sqlite.New(), nil
	case "mssql":
		return mssql.New(schemaName), nil
	}
	return nil, fmt.Errorf("unsupported source database type: %s", kind)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openDump creates the dump file; "-" writes to stdout, which cannot be
// rolled back.
func openDump(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}
	return f, nil
}
