package domain

import "time"

// NamedQuery is a dashboard statistic served by name. Its result is cached
// under the query name.
type NamedQuery struct {
	Name        string
	Description string
	SQL         string
	Params      []any
	CacheTTL    time.Duration
	Log         bool
}
