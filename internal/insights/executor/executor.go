// Package executor runs validated statements against the read-only analytics
// connection and normalizes both the result shape and the failure modes.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	stderrors "commerce-insights/internal/common/errors"
	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/common/metrics"
)

// DefaultMaxRows caps the rows returned to a caller regardless of the LIMIT
// the statement carries.
const DefaultMaxRows = 1000

// QueryResult is the normalized outcome of one executed statement. Columns
// preserves the statement's projection order, which the row maps cannot.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Truncated bool             `json:"truncated"`
	Duration  time.Duration    `json:"-"`
}

// Executor runs read-only queries. The connection it wraps is opened with
// default_transaction_read_only and a server-side statement_timeout, so the
// database is the enforcement point for both.
type Executor struct {
	db      *sql.DB
	logger  logger.Logger
	maxRows int
}

func New(db *sql.DB, log logger.Logger, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, logger: log, maxRows: maxRows}
}

// Run executes sqlText with params and returns up to maxRows rows. Failures
// come back as the typed query errors with the driver error retained as
// cause. Elapsed duration is logged on success and failure alike.
func (e *Executor) Run(ctx context.Context, sqlText string, params []any) (*QueryResult, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, e.fail(sqlText, err, time.Since(start))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.fail(sqlText, err, time.Since(start))
	}

	result := &QueryResult{Columns: columns, Rows: make([]map[string]any, 0, 16)}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, e.fail(sqlText, err, time.Since(start))
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.fail(sqlText, err, time.Since(start))
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)

	metrics.QueryDuration.WithLabelValues("success").Observe(result.Duration.Seconds())
	metrics.QueryRowsReturned.Observe(float64(result.RowCount))
	e.logger.Info("query executed", map[string]interface{}{
		"duration_ms": result.Duration.Milliseconds(),
		"row_count":   result.RowCount,
		"truncated":   result.Truncated,
	})

	return result, nil
}

func (e *Executor) fail(sqlText string, err error, elapsed time.Duration) error {
	classified := classify(err)

	metrics.QueryDuration.WithLabelValues("error").Observe(elapsed.Seconds())
	e.logger.WithError(err).Error("query failed", map[string]interface{}{
		"duration_ms": elapsed.Milliseconds(),
		"error_code":  string(stderrors.CodeOf(classified)),
		"sql":         sqlText,
	})

	return classified
}

// classify maps driver failures onto the typed query errors by inspecting
// the error text, which is the only classification surface lib/pq offers
// consistently across server versions.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return stderrors.NewQueryTimeoutError(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "canceling statement due to statement timeout"),
		strings.Contains(msg, "statement timeout"):
		return stderrors.NewQueryTimeoutError(err)
	case strings.Contains(msg, "permission denied"):
		return stderrors.NewQueryPermissionDeniedError(err)
	case strings.Contains(msg, "syntax error"):
		return stderrors.NewQuerySyntaxError(err)
	default:
		return stderrors.NewQueryFailedError(err)
	}
}

// normalizeValue turns driver-specific representations into JSON-friendly
// ones. lib/pq hands back []byte for text and numeric columns.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
