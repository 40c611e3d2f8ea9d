package respond

import (
	"encoding/json"
	"time"
)

type NotificationItem struct {
	Id            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	WorkspaceId   string          `json:"workspace_id"`
	LeadId        string          `json:"lead_id"`
	Action        string          `json:"action"`
	UserId        string          `json:"user_id"`
	RelatedUserId *string         `json:"related_user_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

type NotificationSnapshot struct {
	Items    []NotificationItem `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// NotificationEvent 推送帧，type 为 notification.insert / notification.update
type NotificationEvent struct {
	Type         string           `json:"type"`
	Notification NotificationItem `json:"notification"`
}
