package schedule

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const activeKeywordsQuery = `
SELECT id::text AS id, frequency, COALESCE(engines, '{}') AS engines
FROM keywords
WHERE is_active = true AND frequency = ANY($1)
ORDER BY id`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads active keywords from the keywords table.
type PostgresSource struct {
	db Querier
}

// NewPostgresSource creates a source over db.
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// ActiveKeywords returns active keywords whose frequency is supported.
func (s *PostgresSource) ActiveKeywords(ctx context.Context) ([]Keyword, error) {
	freqs := make([]string, 0, len(patterns))
	for _, f := range Frequencies() {
		freqs = append(freqs, string(f))
	}

	rows, err := s.db.Query(ctx, activeKeywordsQuery, freqs)
	if err != nil {
		return nil, fmt.Errorf("schedule: query active keywords: %w", err)
	}

	keywords, err := pgx.CollectRows(rows, pgx.RowToStructByName[Keyword])
	if err != nil {
		return nil, fmt.Errorf("schedule: scan active keywords: %w", err)
	}
	return keywords, nil
}
