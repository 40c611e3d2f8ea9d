package persistence

import (
	"context"

	"LeadPulse/internal/modules/notification/domain/entity"
	"LeadPulse/internal/modules/notification/domain/repository"

	"gorm.io/gorm"
)

type notificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func (r *notificationRepositoryImpl) Create(ctx context.Context, n *entity.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepositoryImpl) ListByWorkspace(ctx context.Context, workspaceID string, offset, limit int) ([]entity.Notification, error) {
	var list []entity.Notification
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepositoryImpl) CountByWorkspace(ctx context.Context, workspaceID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("workspace_id = ?", workspaceID).
		Count(&total).Error
	return total, err
}
