package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/mapper"
	"github.com/imtaco/sqlcrossover/migration"
)

// Config holds all application configuration
type Config struct {
	Source struct {
		Type    string `mapstructure:"type"`
		ConnStr string `mapstructure:"conn_str"`
		Schema  string `mapstructure:"schema"`
	} `mapstructure:"source"`

	Target struct {
		Type     string `mapstructure:"type"`
		ConnStr  string `mapstructure:"conn_str"`
		DumpFile string `mapstructure:"dump_file"`
		Dialect  string `mapstructure:"dialect"`
	} `mapstructure:"target"`

	AllTables     bool                         `mapstructure:"all_tables"`
	Tables        []string                     `mapstructure:"tables"`
	BatchSize     int                          `mapstructure:"batch_size"`
	Transactional bool                         `mapstructure:"transactional"`
	CreateSchema  bool                         `mapstructure:"create_schema"`
	CyclePolicy   string                       `mapstructure:"cycle_policy"`
	NameCase      string                       `mapstructure:"name_case"`
	TableMap      map[string]string            `mapstructure:"table_map"`
	ColumnMap     map[string]map[string]string `mapstructure:"column_map"`
}

// newViper returns a viper instance with defaults and environment bindings
func newViper() *viper.Viper {
	v := viper.New()

	// Set defaults
	v.SetDefault("source.type", "postgres")
	v.SetDefault("batch_size", migration.DefaultBatchSize)
	v.SetDefault("transactional", true)
	v.SetDefault("create_schema", false)
	v.SetDefault("cycle_policy", string(migration.CycleFail))
	v.SetDefault("all_tables", true)

	// Enable environment variable reading
	v.SetEnvPrefix("SQLCROSSOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map legacy environment variables
	v.BindEnv("source.conn_str", "SQLCROSSOVER_SOURCE_CONN_STR", "SOURCE_URL")
	v.BindEnv("target.conn_str", "SQLCROSSOVER_TARGET_CONN_STR", "TARGET_URL")
	v.BindEnv("tables", "SQLCROSSOVER_TABLES", "TABLES")
	return v
}

// LoadConfig loads configuration from environment variables, config file, and flags
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("sqlcrossover")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		// Read config file if it exists (don't error if not found)
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Parse tables string if provided via environment
	var tables []string
	for _, t := range config.Tables {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tables = append(tables, part)
			}
		}
	}
	config.Tables = tables

	// an explicit table list narrows the run
	if len(config.Tables) > 0 {
		config.AllTables = false
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Source.ConnStr == "" {
		return fmt.Errorf("source connection string is required (set SOURCE_URL or SQLCROSSOVER_SOURCE_CONN_STR)")
	}
	if _, err := dialect.Lookup(c.Source.Type); err != nil {
		return fmt.Errorf("invalid source type: %w", err)
	}

	switch {
	case c.Target.ConnStr != "" && c.Target.DumpFile != "":
		return fmt.Errorf("set either a target connection string or a dump file, not both")
	case c.Target.ConnStr == "" && c.Target.DumpFile == "":
		return fmt.Errorf("target is required (set TARGET_URL, SQLCROSSOVER_TARGET_CONN_STR or SQLCROSSOVER_TARGET_DUMP_FILE)")
	case c.Target.ConnStr != "":
		if _, err := dialect.Lookup(c.Target.Type); err != nil {
			return fmt.Errorf("invalid target type: %w", err)
		}
	default:
		if c.Target.Dialect == "" {
			c.Target.Dialect = c.Target.Type
		}
		if c.Target.Dialect == "" {
			return fmt.Errorf("dump file needs a target dialect (set target.dialect)")
		}
		if _, err := dialect.Lookup(c.Target.Dialect); err != nil {
			return fmt.Errorf("invalid dump dialect: %w", err)
		}
	}

	if !c.AllTables && len(c.Tables) == 0 {
		return fmt.Errorf("no tables to migrate (set all_tables: true or specify tables)")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if _, err := migration.ParseCyclePolicy(c.CyclePolicy); err != nil {
		return err
	}
	if _, err := mapper.Transformer(c.NameCase); err != nil {
		return err
	}
	return nil
}

// TargetDialect is the dialect the target speaks, live or dump
func (c *Config) TargetDialect() (dialect.Dialect, error) {
	if c.Target.ConnStr != "" {
		return dialect.Lookup(c.Target.Type)
	}
	return dialect.Lookup(c.Target.Dialect)
}
