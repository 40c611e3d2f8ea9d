package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ActionKind 触发通知的线索操作类型
type ActionKind string

const (
	ActionCreated      ActionKind = "created"
	ActionBulkCreated  ActionKind = "bulk_created"
	ActionUpdated      ActionKind = "updated"
	ActionDataUpdated  ActionKind = "data_updated"
	ActionAssigned     ActionKind = "assigned"
	ActionLeadsDeleted ActionKind = "leads_deleted"
	ActionNotesUpdated ActionKind = "notes_updated"
	ActionOther        ActionKind = "other"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionCreated, ActionBulkCreated, ActionUpdated, ActionDataUpdated,
		ActionAssigned, ActionLeadsDeleted, ActionNotesUpdated, ActionOther:
		return true
	}
	return false
}

// ParseActionKind 未知类型归为 other
func ParseActionKind(s string) ActionKind {
	k := ActionKind(s)
	if k.Valid() {
		return k
	}
	return ActionOther
}

// Notification 通知表，创建后除已读状态外不可变（已读状态在 notification_read_status 中）
type Notification struct {
	Id            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Uuid          string         `gorm:"column:uuid;type:char(36);uniqueIndex;not null"`
	WorkspaceId   string         `gorm:"column:workspace_id;type:varchar(64);index:idx_workspace_created,priority:1;not null"`
	LeadId        string         `gorm:"column:lead_id;type:varchar(64);index"`
	Action        string         `gorm:"column:action;type:varchar(32);not null"`
	UserId        string         `gorm:"column:user_id;type:varchar(64);not null"`
	RelatedUserId *string        `gorm:"column:related_user_id;type:varchar(64)"`
	Details       datatypes.JSON `gorm:"column:details;type:json"`
	CreatedAt     time.Time      `gorm:"column:created_at;index:idx_workspace_created,priority:2;not null"`
}

func (Notification) TableName() string {
	return "notification"
}
