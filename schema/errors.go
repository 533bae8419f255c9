package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRows is returned when a target wrote nothing for a non-empty page.
var ErrNoRows = errors.New("no rows written")

// ConnectionError reports a source or target that could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ReflectionError reports a table whose structure could not be read.
type ReflectionError struct {
	Table string
	Err   error
}

func (e *ReflectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("schema reflection failed: %v", e.Err)
	}
	return fmt.Sprintf("schema reflection failed for table %s: %v", e.Table, e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// CycleError lists every table taking part in a foreign key cycle of two or
// more distinct tables. Cycles holds each cycle's members separately.
type CycleError struct {
	Members []string
	Cycles  [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "[" + strings.Join(c, ", ") + "]"
	}
	return fmt.Sprintf("circular foreign key dependency between tables %s", strings.Join(parts, " "))
}

// AdoptionError reports a table the target declined.
type AdoptionError struct {
	Table  string
	Reason string
}

func (e *AdoptionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("target cannot adopt table %s", e.Table)
	}
	return fmt.Sprintf("target cannot adopt table %s: %s", e.Table, e.Reason)
}

// Constraint names the kind of integrity violation behind an InsertError.
type Constraint string

const (
	ConstraintNone       Constraint = ""
	ConstraintUnique     Constraint = "unique"
	ConstraintForeignKey Constraint = "foreign key"
	ConstraintNotNull    Constraint = "not null"
	ConstraintCheck      Constraint = "check"
)

// InsertError reports a batch the target rejected.
type InsertError struct {
	Table      string
	Rows       int
	Constraint Constraint
	Err        error
}

func (e *InsertError) Error() string {
	msg := fmt.Sprintf("insert of %d rows into %s rejected", e.Rows, e.Table)
	if e.Constraint != ConstraintNone {
		msg += fmt.Sprintf(" (%s violation)", e.Constraint)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InsertError) Unwrap() error { return e.Err }

// FormatError reports a value that has no literal form in the active dialect.
type FormatError struct {
	Dialect string
	Table   string
	Column  string
	Value   any
	Err     error
}

func (e *FormatError) Error() string {
	where := e.Column
	if e.Table != "" {
		where = e.Table + "." + e.Column
	}
	msg := fmt.Sprintf("cannot render %T value of %s as a %s literal", e.Value, where, e.Dialect)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// UnsupportedError reports an operation the chosen target cannot perform.
type UnsupportedError struct {
	Operation string
	Target    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s target does not support %s", e.Target, e.Operation)
}

// ConfigError reports a run configuration that cannot work with the given
// source and target. It is raised before any row is moved.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid migration configuration: " + e.Msg
}
