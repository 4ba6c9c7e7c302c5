// Package catalog loads the named dashboard queries from YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// File is the on-disk catalog format.
type File struct {
	Queries map[string]QueryConfig `yaml:"queries"`
}

// QueryConfig describes one named query.
type QueryConfig struct {
	Description string        `yaml:"description"`
	SQL         string        `yaml:"sql"`
	Params      []any         `yaml:"params,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl,omitempty"`
	Log         bool          `yaml:"log,omitempty"`
}

// UnmarshalYAML accepts a bare SQL string as shorthand:
//
//	queries:
//	  vehicles-count: "SELECT count(*) AS total FROM vehicles"   # shorthand
//	  severity-breakdown:                                        # full form
//	    sql: "SELECT severity, count(*) FROM dtc_readings GROUP BY severity"
//	    cache_ttl: 30s
func (qc *QueryConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		qc.SQL = value.Value
		return nil
	}
	type alias QueryConfig
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding query config: %w", err)
	}
	*qc = QueryConfig(a)
	return nil
}

// LoadFromFile reads and validates a catalog file.
func LoadFromFile(path string) ([]domain.NamedQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in dashboard queries.
func Default() ([]domain.NamedQuery, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates catalog YAML. Queries are returned sorted by name.
func Parse(data []byte) ([]domain.NamedQuery, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing query catalog YAML: %w", err)
	}
	if err := validate(&f); err != nil {
		return nil, fmt.Errorf("validating query catalog: %w", err)
	}

	out := make([]domain.NamedQuery, 0, len(f.Queries))
	for name, qc := range f.Queries {
		out = append(out, domain.NamedQuery{
			Name:        name,
			Description: qc.Description,
			SQL:         strings.TrimSpace(qc.SQL),
			Params:      qc.Params,
			CacheTTL:    qc.CacheTTL,
			Log:         qc.Log,
		})
	}
	slices.SortFunc(out, func(a, b domain.NamedQuery) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func validate(f *File) error {
	if len(f.Queries) == 0 {
		return fmt.Errorf("queries must not be empty")
	}
	for name, qc := range f.Queries {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("queries contains an empty name")
		}
		if strings.TrimSpace(qc.SQL) == "" {
			return fmt.Errorf("queries[%q].sql is required", name)
		}
		if qc.CacheTTL < 0 {
			return fmt.Errorf("queries[%q].cache_ttl must not be negative", name)
		}
	}
	return nil
}
