package request

import "encoding/json"

// CreateNotificationRequest 写路径（线索变更方）提交的通知
type CreateNotificationRequest struct {
	WorkspaceId   string          `json:"workspace_id"`
	LeadId        string          `json:"lead_id"`
	Action        string          `json:"action" binding:"required"`
	UserId        string          `json:"user_id"`
	RelatedUserId string          `json:"related_user_id"`
	Details       json.RawMessage `json:"details"`
}

type ListNotificationsRequest struct {
	WorkspaceId string `form:"-"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}
