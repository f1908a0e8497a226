package users

import (
	"context"

	"github.com/kpawlak/taskgrid/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePublicKey(ctx context.Context, username string, publicKeyPEM string) error
}
