package request

type NotificationIdsRequest struct {
	UserId          string   `json:"-"`
	NotificationIds []string `json:"notification_ids" binding:"required"`
}
