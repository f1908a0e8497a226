package activesessions

import (
	"context"
	"fmt"

	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, username, ipAddress string) error {
	query :=
		`INSERT INTO active_sessions (username, ip_address)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, username, ipAddress); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListLatest(ctx context.Context) ([]models.ActiveSession, error) {
	// Latest record per username; ties on ts are broken arbitrarily, which
	// is acceptable since collisions are sub-millisecond.
	query :=
		`SELECT DISTINCT ON (username) id, username, ip_address, ts
		 FROM active_sessions
		 ORDER BY username, ts DESC
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var sessions []models.ActiveSession
	for rows.Next() {
		var s models.ActiveSession
		if err := rows.Scan(&s.ID, &s.Username, &s.IPAddress, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return sessions, nil
}
