package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// nextSequence returns the next zero-padded sequence number for documents
// numbered {prefix}{NNNNN}. Suffixes are fixed-width, so the lexicographic
// maximum is also the numeric maximum.
func nextSequence(ctx context.Context, q querier, table, prefix string, width int) (string, error) {
	query := fmt.Sprintf(
		"SELECT number FROM %s WHERE number LIKE ? ORDER BY number DESC LIMIT 1", table)

	var last string
	err := q.QueryRowContext(ctx, query, prefix+"%").Scan(&last)
	if err == sql.ErrNoRows {
		return fmt.Sprintf("%s%0*d", prefix, width, 1), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last sequence for %s: %w", prefix, err)
	}

	suffix := strings.TrimPrefix(last, prefix)
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", fmt.Errorf("malformed document number %q: %w", last, err)
	}

	return fmt.Sprintf("%s%0*d", prefix, width, n+1), nil
}

// placeholders builds a "?, ?, ?" list for IN clauses
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args widens an ID slice for variadic query args
func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
