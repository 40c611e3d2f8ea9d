package persistence

import (
	"context"
	"time"

	"LeadPulse/internal/modules/notification/domain/entity"
	"LeadPulse/internal/modules/notification/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const readStatusBatchSize = 200

type readStatusRepositoryImpl struct {
	db *gorm.DB
}

func NewReadStatusRepository(db *gorm.DB) repository.ReadStatusRepository {
	return &readStatusRepositoryImpl{db: db}
}

func (r *readStatusRepositoryImpl) Get(ctx context.Context, notificationID, userID string) (*entity.ReadStatus, error) {
	var st entity.ReadStatus
	err := r.db.WithContext(ctx).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *readStatusRepositoryImpl) Create(ctx context.Context, st *entity.ReadStatus) error {
	return r.db.WithContext(ctx).Create(st).Error
}

func (r *readStatusRepositoryImpl) MarkRead(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.ReadStatus{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read":    true,
			"read_at":    at,
			"updated_at": at,
		}).Error
}

func (r *readStatusRepositoryImpl) ListByNotificationIDs(ctx context.Context, userID string, notificationIDs []string) ([]entity.ReadStatus, error) {
	if len(notificationIDs) == 0 {
		return nil, nil
	}
	var list []entity.ReadStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND notification_id IN ?", userID, notificationIDs).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// BatchCreate 批量插入；并发下若已有行则改为置已读，唯一索引保证不会出现重复行
func (r *readStatusRepositoryImpl) BatchCreate(ctx context.Context, rows []entity.ReadStatus) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_read", "read_at", "updated_at"}),
		}).
		CreateInBatches(&rows, readStatusBatchSize).Error
}

func (r *readStatusRepositoryImpl) BatchMarkRead(ctx context.Context, userID string, notificationIDs []string, at time.Time) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&entity.ReadStatus{}).
		Where("user_id = ? AND notification_id IN ?", userID, notificationIDs).
		Updates(map[string]interface{}{
			"is_read":    true,
			"read_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
