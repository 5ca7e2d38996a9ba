package repository

import (
	"context"
	"time"
)

// AlertCooldown suppresses repeat notifications for an alert while a
// cooldown window is open. Implementations must treat store outages as
// "not cooling down" so a broken cache never blocks a notification.
type AlertCooldown interface {
	IsCoolingDown(ctx context.Context, alertID string) (bool, error)
	Arm(ctx context.Context, alertID string, window time.Duration) error
}
