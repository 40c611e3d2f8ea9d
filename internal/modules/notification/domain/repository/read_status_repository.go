package repository

import (
	"context"
	"time"

	"LeadPulse/internal/modules/notification/domain/entity"
)

type ReadStatusRepository interface {
	// Get 查不到返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, notificationID, userID string) (*entity.ReadStatus, error)
	// Create 违反唯一索引时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, st *entity.ReadStatus) error
	MarkRead(ctx context.Context, id int64, at time.Time) error
	ListByNotificationIDs(ctx context.Context, userID string, notificationIDs []string) ([]entity.ReadStatus, error)
	BatchCreate(ctx context.Context, rows []entity.ReadStatus) error
	BatchMarkRead(ctx context.Context, userID string, notificationIDs []string, at time.Time) (int64, error)
}
