package inbox

import (
	"encoding/json"
	"time"
)

// 推送事件类型
const (
	EventConnected          = "connected"
	EventHeartbeat          = "heartbeat"
	EventNotificationInsert = "notification.insert"
	EventNotificationUpdate = "notification.update"
)

type Notification struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	WorkspaceID   string          `json:"workspace_id"`
	LeadID        string          `json:"lead_id"`
	Action        string          `json:"action"`
	UserID        string          `json:"user_id"`
	RelatedUserID *string         `json:"related_user_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

type ReadStatus struct {
	NotificationID string     `json:"notification_id"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// Event 推送通道上的一帧。Notification 只在 notification.* 事件中存在
type Event struct {
	Type         string
	Notification *Notification
	Raw          json.RawMessage
}

func ParseEvent(b []byte) (Event, error) {
	var head struct {
		Type         string        `json:"type"`
		Notification *Notification `json:"notification"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return Event{}, err
	}
	raw := make(json.RawMessage, len(b))
	copy(raw, b)
	return Event{Type: head.Type, Notification: head.Notification, Raw: raw}, nil
}

// ReadSource 本地已读标记的来源
type ReadSource int

const (
	// SourceArrival 到达时的推断值：操作者本人视为已读，等待服务端校正
	SourceArrival ReadSource = iota
	// SourceServer 服务端已读表的真实值
	SourceServer
	// SourcePending 本地乐观置为已读，尚未得到服务端确认
	SourcePending
)

func (s ReadSource) String() string {
	switch s {
	case SourceServer:
		return "server"
	case SourcePending:
		return "pending"
	default:
		return "arrival"
	}
}

type Record struct {
	Notification
	Read   bool
	Source ReadSource
}

// Pending 乐观已读尚未被服务端确认
func (r Record) Pending() bool {
	return r.Source == SourcePending
}

// View 某一时刻的只读快照，Records 按创建时间倒序
type View struct {
	Records []Record
	Unread  int
}
