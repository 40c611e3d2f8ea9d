package entity

import "time"

// ReadStatus 每个 (notification, user) 至多一行，upsert 语义
type ReadStatus struct {
	Id             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	NotificationId string     `gorm:"column:notification_id;type:char(36);uniqueIndex:uk_notification_user,priority:1;not null"`
	UserId         string     `gorm:"column:user_id;type:varchar(64);uniqueIndex:uk_notification_user,priority:2;index;not null"`
	IsRead         bool       `gorm:"column:is_read;not null;default:false"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

func (ReadStatus) TableName() string {
	return "notification_read_status"
}
