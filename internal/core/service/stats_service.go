package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// StatsService serves the dashboard's named aggregate queries through the
// query cache.
type StatsService struct {
	queries *QueryService
	named   map[string]domain.NamedQuery
}

func NewStatsService(queries *QueryService, named []domain.NamedQuery) *StatsService {
	m := make(map[string]domain.NamedQuery, len(named))
	for _, q := range named {
		m[q.Name] = q
	}
	return &StatsService{queries: queries, named: m}
}

// Names lists the available queries in sorted order.
func (s *StatsService) Names() []string {
	names := make([]string, 0, len(s.named))
	for name := range s.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes the named query. refresh bypasses the cached value and
// replaces it with a fresh one.
func (s *StatsService) Run(ctx context.Context, name string, refresh bool) (domain.ResultSet, error) {
	q, ok := s.named[name]
	if !ok {
		return domain.ResultSet{}, fmt.Errorf("%w: %q", domain.ErrUnknownQuery, name)
	}
	return s.queries.ExecuteQuery(ctx, q.SQL, q.Params, domain.QueryOptions{
		CacheKey:    q.Name,
		CacheTTL:    q.CacheTTL,
		SkipCache:   refresh,
		LogQuery:    q.Log,
		Description: q.Description,
	})
}
