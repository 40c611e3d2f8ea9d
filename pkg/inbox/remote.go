package inbox

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("inbox: not found")
	ErrStoreClosed = errors.New("inbox: store closed")
	ErrUnknownID   = errors.New("inbox: unknown notification")
)

// Remote 服务端接口：通知快照与按用户的已读表
type Remote interface {
	ListNotifications(ctx context.Context, workspaceID string) ([]Notification, error)
	// LookupReadStatus 只返回已存在的行
	LookupReadStatus(ctx context.Context, ids []string) ([]ReadStatus, error)
	// GetReadStatus 没有行时返回 ErrNotFound
	GetReadStatus(ctx context.Context, id string) (*ReadStatus, error)
	InsertReadStatus(ctx context.Context, ids []string) error
	UpdateReadStatus(ctx context.Context, ids []string) error
}

// Subscriber 打开一条推送流，流结束时关闭返回的 channel
type Subscriber interface {
	Subscribe(ctx context.Context, workspaceID string) (<-chan Event, error)
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inbox: http %d", e.StatusCode)
	}
	return fmt.Sprintf("inbox: http %d: %s", e.StatusCode, e.Message)
}

// APIError HTTP 200 但业务码非成功
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inbox: code %d: %s", e.Code, e.Message)
}
