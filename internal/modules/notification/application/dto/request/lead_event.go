package request

import (
	"encoding/json"
	"time"
)

// LeadEvent 线索变更事件，来自 Kafka 或 HTTP 直接投递
type LeadEvent struct {
	EventId       string          `json:"event_id"`
	WorkspaceId   string          `json:"workspace_id"`
	LeadId        string          `json:"lead_id"`
	Action        string          `json:"action"`
	UserId        string          `json:"user_id"`
	RelatedUserId string          `json:"related_user_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	// BroadcastOnly 只推送给在线客户端刷新缓存，不落通知
	BroadcastOnly bool      `json:"broadcast_only,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e LeadEvent) ToCreateRequest() CreateNotificationRequest {
	return CreateNotificationRequest{
		WorkspaceId:   e.WorkspaceId,
		LeadId:        e.LeadId,
		Action:        e.Action,
		UserId:        e.UserId,
		RelatedUserId: e.RelatedUserId,
		Details:       e.Details,
	}
}
