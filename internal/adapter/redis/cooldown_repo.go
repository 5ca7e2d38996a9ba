package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/price-tracker/tracker-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const alertCooldownKeyPrefix = "alert_cooldown:"

type alertCooldownRepository struct {
	client *redis.Client
}

func NewAlertCooldownRepository(client *redis.Client) repository.AlertCooldown {
	return &alertCooldownRepository{client: client}
}

func cooldownKey(alertID string) string {
	return alertCooldownKeyPrefix + alertID
}

func (r *alertCooldownRepository) IsCoolingDown(ctx context.Context, alertID string) (bool, error) {
	err := r.client.Get(ctx, cooldownKey(alertID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cooldown for alert %s: %w", alertID, err)
	}
	return true, nil
}

func (r *alertCooldownRepository) Arm(ctx context.Context, alertID string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	err := r.client.Set(ctx, cooldownKey(alertID), time.Now().UTC().Format(time.RFC3339), window).Err()
	if err != nil {
		return fmt.Errorf("failed to arm cooldown for alert %s: %w", alertID, err)
	}
	return nil
}
