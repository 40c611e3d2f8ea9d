package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"LeadPulse/internal/modules/notification/application/dto/request"
	"LeadPulse/internal/modules/notification/application/dto/respond"
	"LeadPulse/internal/modules/notification/domain/entity"
	"LeadPulse/internal/modules/notification/domain/repository"
	"LeadPulse/pkg/util"
	"LeadPulse/pkg/xerr"
	"LeadPulse/pkg/zlog"

	"github.com/ecodeclub/ekit/slice"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	EventNotificationInsert = "notification.insert"
	EventNotificationUpdate = "notification.update"

	defaultPageSize = 50
	maxPageSize     = 200
)

// Broadcaster 由 stream.Dispatcher 实现
type Broadcaster interface {
	BroadcastAsync(workspaceID string, event any)
}

type NotificationService interface {
	Create(ctx context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error)
	// Publish 推送原始线索事件，客户端据此刷新缓存
	Publish(ctx context.Context, workspaceID string, event json.RawMessage) error
	ListSnapshot(ctx context.Context, req request.ListNotificationsRequest) (*respond.NotificationSnapshot, error)
	// Get 只返回属于该 workspace 的通知，其它情况一律视为不存在
	Get(ctx context.Context, workspaceID, id string) (*respond.NotificationItem, error)
}

type notificationServiceImpl struct {
	repo        repository.NotificationRepository
	broadcaster Broadcaster
}

func NewNotificationService(repo repository.NotificationRepository, broadcaster Broadcaster) NotificationService {
	return &notificationServiceImpl{repo: repo, broadcaster: broadcaster}
}

func (s *notificationServiceImpl) Create(ctx context.Context, req request.CreateNotificationRequest) (*respond.NotificationItem, error) {
	req.WorkspaceId = strings.TrimSpace(req.WorkspaceId)
	req.UserId = strings.TrimSpace(req.UserId)
	req.Action = strings.TrimSpace(req.Action)
	if req.WorkspaceId == "" || req.UserId == "" || req.Action == "" {
		return nil, xerr.ErrParam
	}

	details := []byte(req.Details)
	if len(details) == 0 || string(details) == "null" {
		details = []byte("{}")
	}
	if !json.Valid(details) {
		return nil, xerr.New(xerr.BadRequest, "details must be valid JSON")
	}

	n := &entity.Notification{
		Uuid:        util.GenerateUUID(),
		WorkspaceId: req.WorkspaceId,
		LeadId:      strings.TrimSpace(req.LeadId),
		Action:      string(entity.ParseActionKind(req.Action)),
		UserId:      req.UserId,
		Details:     details,
		CreatedAt:   time.Now(),
	}
	if related := strings.TrimSpace(req.RelatedUserId); related != "" {
		n.RelatedUserId = &related
	}

	if err := s.repo.Create(ctx, n); err != nil {
		zlog.Error("create notification failed", zap.String("workspace_id", n.WorkspaceId), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	item := toNotificationItem(*n)
	s.broadcast(n.WorkspaceId, respond.NotificationEvent{Type: EventNotificationInsert, Notification: item})
	return &item, nil
}

func (s *notificationServiceImpl) Publish(_ context.Context, workspaceID string, event json.RawMessage) error {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return xerr.ErrParam
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(event, &head); err != nil || strings.TrimSpace(head.Type) == "" {
		return xerr.New(xerr.BadRequest, "event must be a JSON object with a type")
	}
	s.broadcast(workspaceID, event)
	return nil
}

func (s *notificationServiceImpl) ListSnapshot(ctx context.Context, req request.ListNotificationsRequest) (*respond.NotificationSnapshot, error) {
	ws := strings.TrimSpace(req.WorkspaceId)
	if ws == "" {
		return nil, xerr.ErrParam
	}
	page, size := normalizePage(req.Page, req.PageSize)

	var (
		list  []entity.Notification
		total int64
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		list, err = s.repo.ListByWorkspace(egCtx, ws, (page-1)*size, size)
		return err
	})
	eg.Go(func() error {
		var err error
		total, err = s.repo.CountByWorkspace(egCtx, ws)
		return err
	})
	if err := eg.Wait(); err != nil {
		zlog.Error("list notifications failed", zap.String("workspace_id", ws), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	return &respond.NotificationSnapshot{
		Items: slice.Map(list, func(_ int, src entity.Notification) respond.NotificationItem {
			return toNotificationItem(src)
		}),
		Total:    total,
		Page:     page,
		PageSize: size,
	}, nil
}

func (s *notificationServiceImpl) Get(ctx context.Context, workspaceID, id string) (*respond.NotificationItem, error) {
	workspaceID, id = strings.TrimSpace(workspaceID), strings.TrimSpace(id)
	if workspaceID == "" || id == "" {
		return nil, xerr.ErrParam
	}
	n, err := s.repo.GetByUUID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.ErrNotFound
	}
	if err != nil {
		zlog.Error("get notification failed", zap.String("notification_id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if n.WorkspaceId != workspaceID {
		return nil, xerr.ErrNotFound
	}
	item := toNotificationItem(*n)
	return &item, nil
}

func (s *notificationServiceImpl) broadcast(workspaceID string, event any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastAsync(workspaceID, event)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func toNotificationItem(n entity.Notification) respond.NotificationItem {
	item := respond.NotificationItem{
		Id:            n.Uuid,
		CreatedAt:     n.CreatedAt,
		WorkspaceId:   n.WorkspaceId,
		LeadId:        n.LeadId,
		Action:        n.Action,
		UserId:        n.UserId,
		RelatedUserId: n.RelatedUserId,
	}
	if len(n.Details) > 0 {
		item.Details = json.RawMessage(n.Details)
	}
	return item
}
