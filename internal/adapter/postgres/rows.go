package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// toResultSet drains rows into a ResultSet keyed by column name and closes
// them. Statements without a row description yield only the command tag.
func toResultSet(rows pgx.Rows) (domain.ResultSet, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := domain.ResultSet{Rows: []map[string]any{}}
	if len(fields) > 0 {
		rs.Columns = make([]string, len(fields))
		for i, fd := range fields {
			rs.Columns[i] = fd.Name
		}
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return domain.ResultSet{}, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		rs.Rows = append(rs.Rows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ResultSet{}, fmt.Errorf("executing query: %w", err)
	}

	tag := rows.CommandTag()
	rs.RowsAffected = tag.RowsAffected()
	rs.Command = tag.String()
	return rs, nil
}
