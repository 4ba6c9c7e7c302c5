package domain

import (
	"errors"
	"maps"
	"slices"
	"time"
)

const (
	MaxCacheSize    = 100
	DefaultCacheTTL = 60 * time.Second
	DefaultMaxConns = 10
)

var (
	ErrPoolClosed   = errors.New("connection pool is closed")
	ErrUnknownQuery = errors.New("unknown dashboard query")
)

// QueryOptions configures a single ExecuteQuery call. The zero value disables
// caching and logs only failures.
type QueryOptions struct {
	// CacheKey enables caching for this call when non-empty.
	CacheKey string
	// CacheTTL overrides the cache-wide default TTL when positive.
	CacheTTL time.Duration
	// SkipCache bypasses the lookup but still stores the fresh result.
	SkipCache bool
	// LogQuery records successful executions. Failures are always recorded.
	LogQuery    bool
	Description string
}

// TransactionOptions configures a single ExecuteTransaction call.
type TransactionOptions struct {
	// LogTransaction records successful commits. Failures are always recorded.
	LogTransaction bool
	Description    string
}

// Statement is one parameterized step of a transaction.
type Statement struct {
	Query  string `json:"query"`
	Params []any  `json:"params,omitempty"`
}

// ResultSet is the outcome of a single statement.
type ResultSet struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
	Command      string           `json:"command,omitempty"`
}

// Clone copies the column list, the row slice and each row map. Row values
// are scalars decoded by pgx and are shared.
func (r ResultSet) Clone() ResultSet {
	out := r
	out.Columns = slices.Clone(r.Columns)
	if r.Rows != nil {
		out.Rows = make([]map[string]any, len(r.Rows))
		for i, row := range r.Rows {
			out.Rows[i] = maps.Clone(row)
		}
	}
	return out
}

// RowCount is the number of rows used in log messages. A command result
// without a row description counts as one logical row.
func (r ResultSet) RowCount() int {
	if len(r.Columns) == 0 {
		return 1
	}
	return len(r.Rows)
}

// PoolStats is a point-in-time view of the connection pool.
type PoolStats struct {
	Initialized          bool  `json:"initialized"`
	MaxConns             int32 `json:"max_conns"`
	TotalConns           int32 `json:"total_conns"`
	AcquiredConns        int32 `json:"acquired_conns"`
	IdleConns            int32 `json:"idle_conns"`
	AcquireCount         int64 `json:"acquire_count"`
	EmptyAcquireCount    int64 `json:"empty_acquire_count"`
	CanceledAcquireCount int64 `json:"canceled_acquire_count"`
}
