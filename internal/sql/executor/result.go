package executor

import (
	"github.com/tuannm99/novardb/internal/dberr"
)

// Result is the generic statement result returned to the caller.
//
// RowCount is the number of returned rows for SELECT and the number of
// affected rows for INSERT/UPDATE/DELETE.
type Result struct {
	Success       bool     `json:"success"`
	Columns       []string `json:"columns"`
	Rows          [][]any  `json:"rows"`
	RowCount      int      `json:"row_count"`
	Message       string   `json:"message"`
	ExecutionTime float64  `json:"execution_time"` // seconds
	Error         string   `json:"error,omitempty"`
	ErrorKind     string   `json:"error_kind,omitempty"`
}

// Records returns the rows as column -> value maps.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			if j < len(row) {
				m[c] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

// Failure builds the result for a failed statement.
func Failure(msg string, err error) *Result {
	r := &Result{
		Success: false,
		Columns: []string{},
		Rows:    [][]any{},
		Message: msg,
	}
	if err != nil {
		r.Error = err.Error()
		r.ErrorKind = dberr.Kind(err)
	}
	return r
}

func success(msg string, affected int) *Result {
	return &Result{
		Success:  true,
		Columns:  []string{},
		Rows:     [][]any{},
		RowCount: affected,
		Message:  msg,
	}
}
