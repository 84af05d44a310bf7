// Package dberr holds the error taxonomy shared by every engine layer.
//
// Classified failures are sentinel errors wrapped with context via %w, so callers
// test them with errors.Is. Anything unclassified that escapes a pipeline stage is
// wrapped in an *ExecutionError carrying the stage name.
package dberr

import (
	"errors"
	"fmt"
)

var (
	ErrParse            = errors.New("parse error")
	ErrSchema           = errors.New("schema error")
	ErrConstraint       = errors.New("constraint violation")
	ErrStorage          = errors.New("storage error")
	ErrTableNotFound    = errors.New("table not found")
	ErrDatabaseNotFound = errors.New("database not found")
	ErrTableExists      = errors.New("table already exists")
	ErrColumnNotFound   = errors.New("column not found")
)

// ExecutionError wraps an unexpected failure inside a pipeline stage.
type ExecutionError struct {
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("execution error in %s", e.Stage)
	}
	return fmt.Sprintf("execution error in %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func Parsef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

func Schemaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func Constraintf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstraint, fmt.Sprintf(format, args...))
}

func Storagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, args...))
}

// TableNotFound reports a missing table. inStorage also marks the error as a
// storage failure, which is what the file layer returns for a missing directory.
func TableNotFound(table string, inStorage bool) error {
	if inStorage {
		return fmt.Errorf("%w: %w: %s", ErrStorage, ErrTableNotFound, table)
	}
	return fmt.Errorf("%w: %s", ErrTableNotFound, table)
}

func DatabaseNotFound(name string, inStorage bool) error {
	if inStorage {
		return fmt.Errorf("%w: %w: %s", ErrStorage, ErrDatabaseNotFound, name)
	}
	return fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
}

func ColumnNotFound(column string) error {
	return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
}

var classified = []error{
	ErrParse,
	ErrSchema,
	ErrConstraint,
	ErrStorage,
	ErrTableNotFound,
	ErrDatabaseNotFound,
	ErrTableExists,
	ErrColumnNotFound,
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return true
	}
	for _, c := range classified {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// Wrap tags an unclassified error with the stage it escaped from.
func Wrap(stage string, err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return &ExecutionError{Stage: stage, Err: err}
}

// Kind returns a short machine-readable name for err's class.
func Kind(err error) string {
	var ee *ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrConstraint):
		return "constraint_error"
	case errors.Is(err, ErrSchema):
		return "schema_error"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, ErrDatabaseNotFound):
		return "database_not_found"
	case errors.Is(err, ErrTableExists):
		return "table_exists"
	case errors.Is(err, ErrColumnNotFound):
		return "column_not_found"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.As(err, &ee):
		return "execution_error"
	default:
		return "error"
	}
}
