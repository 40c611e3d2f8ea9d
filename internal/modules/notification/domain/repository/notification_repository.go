package repository

import (
	"context"

	"LeadPulse/internal/modules/notification/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByUUID(ctx context.Context, uuid string) (*entity.Notification, error)
	// ListByWorkspace 按创建时间倒序分页
	ListByWorkspace(ctx context.Context, workspaceID string, offset, limit int) ([]entity.Notification, error)
	CountByWorkspace(ctx context.Context, workspaceID string) (int64, error)
}
