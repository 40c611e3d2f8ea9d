package respond

import "time"

type ReadStatusItem struct {
	NotificationId string     `json:"notification_id"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

type BatchResult struct {
	Affected int64 `json:"affected"`
}

type MarkAllReadRespond struct {
	Updated  int64 `json:"updated"`
	Inserted int64 `json:"inserted"`
}
