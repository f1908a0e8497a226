package broadcasts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/server/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.BroadcastTask) error {
	query :=
		`INSERT INTO broadcast_tasks (id, content, a, b, operation, expected_result)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.Content, task.A, task.B, task.Operation, task.ExpectedResult).
		Scan(&task.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context) (*models.BroadcastTask, error) {
	query :=
		`SELECT id, content, a, b, operation, expected_result, created_at
		 FROM broadcast_tasks
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	return r.scanTask(r.db.QueryRowContext(ctx, query))
}

func (r *PostgresRepository) Find(ctx context.Context, taskID string) (*models.BroadcastTask, error) {
	query :=
		`SELECT id, content, a, b, operation, expected_result, created_at
		 FROM broadcast_tasks
		 WHERE id = $1
		 `

	return r.scanTask(r.db.QueryRowContext(ctx, query, taskID))
}

func (r *PostgresRepository) scanTask(row *sql.Row) (*models.BroadcastTask, error) {
	task := &models.BroadcastTask{}
	err := row.Scan(&task.ID, &task.Content, &task.A, &task.B,
		&task.Operation, &task.ExpectedResult, &task.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return task, nil
}

func (r *PostgresRepository) InsertResult(ctx context.Context, result *models.BroadcastTaskResult) error {
	query :=
		`INSERT INTO broadcast_task_results (id, task_id, username, answer, is_correct)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING submitted_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		result.ID, result.TaskID, result.Username, result.Answer, result.IsCorrect).
		Scan(&result.SubmittedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrorAlreadySubmitted
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) History(ctx context.Context) ([]models.BroadcastTaskStats, error) {
	query :=
		`SELECT t.id, t.content, t.a, t.b, t.operation, t.expected_result, t.created_at,
		        COUNT(res.id) AS total_submissions,
		        COALESCE(SUM(CASE WHEN res.is_correct THEN 1 ELSE 0 END), 0) AS correct_count,
		        COALESCE(SUM(CASE WHEN NOT res.is_correct THEN 1 ELSE 0 END), 0) AS incorrect_count
		 FROM broadcast_tasks t
		 LEFT OUTER JOIN broadcast_task_results res ON res.task_id = t.id
		 GROUP BY t.id
		 ORDER BY t.created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var history []models.BroadcastTaskStats
	for rows.Next() {
		var s models.BroadcastTaskStats
		err := rows.Scan(&s.ID, &s.Content, &s.A, &s.B, &s.Operation,
			&s.ExpectedResult, &s.CreatedAt,
			&s.TotalSubmissions, &s.CorrectCount, &s.IncorrectCount)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return history, nil
}
