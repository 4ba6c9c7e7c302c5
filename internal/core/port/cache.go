package port

import (
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// ResultCache stores query results by caller-chosen key.
type ResultCache interface {
	Get(key string) (domain.ResultSet, bool)
	// Set inserts or replaces key. A non-positive ttl selects the cache default.
	Set(key string, value domain.ResultSet, ttl time.Duration)
	Clear()
	Len() int
}
