package broadcasts

import (
	"context"

	"github.com/kpawlak/taskgrid/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, task *models.BroadcastTask) error

	// Latest returns the most recently created task, or common.ErrorNotFound.
	Latest(ctx context.Context) (*models.BroadcastTask, error)

	// Find returns the task with the given id, or common.ErrorNotFound.
	Find(ctx context.Context, taskID string) (*models.BroadcastTask, error)

	// InsertResult persists one (task, user) submission. The unique
	// constraint on (task_id, username) makes check-and-insert a single
	// atomic unit even across server instances; a violation is reported as
	// common.ErrorAlreadySubmitted.
	InsertResult(ctx context.Context, result *models.BroadcastTaskResult) error

	// History returns every task, newest first, with submission aggregates
	// (left outer join: tasks without submissions appear with zero counts).
	History(ctx context.Context) ([]models.BroadcastTaskStats, error)
}
