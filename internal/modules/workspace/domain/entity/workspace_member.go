package entity

import "time"

const (
	MemberStatusActive   int8 = 0
	MemberStatusDisabled int8 = 1
)

// WorkspaceMember 用户与 workspace 的成员关系，推送通道据此做权限校验
type WorkspaceMember struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	WorkspaceId string    `gorm:"column:workspace_id;type:varchar(64);uniqueIndex:uk_workspace_user,priority:1;not null"`
	UserId      string    `gorm:"column:user_id;type:varchar(64);uniqueIndex:uk_workspace_user,priority:2;index;not null"`
	Role        string    `gorm:"column:role;type:varchar(32);not null;default:'member'"`
	Status      int8      `gorm:"column:status;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_member"
}
