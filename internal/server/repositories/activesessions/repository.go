package activesessions

import (
	"context"

	"github.com/kpawlak/taskgrid/internal/server/models"
)

type Repository interface {
	// Append adds one login record. The log is append-only.
	Append(ctx context.Context, username, ipAddress string) error

	// ListLatest returns, for every username with at least one record, the
	// record with the most recent timestamp.
	ListLatest(ctx context.Context) ([]models.ActiveSession, error)
}
