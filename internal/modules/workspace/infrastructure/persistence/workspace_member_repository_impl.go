package persistence

import (
	"context"

	"LeadPulse/internal/modules/workspace/domain/entity"
	"LeadPulse/internal/modules/workspace/domain/repository"

	"gorm.io/gorm"
)

type workspaceMemberRepositoryImpl struct {
	db *gorm.DB
}

func NewWorkspaceMemberRepository(db *gorm.DB) repository.WorkspaceMemberRepository {
	return &workspaceMemberRepositoryImpl{db: db}
}

func (r *workspaceMemberRepositoryImpl) IsActiveMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&entity.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ? AND status = ?", workspaceID, userID, entity.MemberStatusActive).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
