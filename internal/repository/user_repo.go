package repository

import (
	"context"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*entity.User, error)
}
