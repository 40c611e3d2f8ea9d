package service

import (
	"context"
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

type ReadStatusService interface {
	// Lookup 只返回已存在的行，缺失视为未读
	Lookup(ctx context.Context, req request.NotificationIdsRequest) ([]respond.ReadStatusItem, error)
	Get(ctx context.Context, userID, notificationID string) (*respond.ReadStatusItem, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*respond.ReadStatusItem, error)
	BatchInsert(ctx context.Context, req request.NotificationIdsRequest) (*respond.BatchResult, error)
	BatchUpdate(ctx context.Context, req request.NotificationIdsRequest) (*respond.BatchResult, error)
	MarkAllRead(ctx context.Context, req request.NotificationIdsRequest) (*respond.MarkAllReadRespond, error)
}

type readStatusServiceImpl struct {
	repo repository.ReadStatusRepository
	now  func() time.Time
}

func NewReadStatusService(repo repository.ReadStatusRepository) ReadStatusService {
	return &readStatusServiceImpl{repo: repo, now: time.Now}
}

func (s *readStatusServiceImpl) Lookup(ctx context.Context, req request.NotificationIdsRequest) ([]respond.ReadStatusItem, error) {
	ids, err := normalizeIds(req)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []respond.ReadStatusItem{}, nil
	}
	list, err := s.repo.ListByNotificationIDs(ctx, req.UserId, ids)
	if err != nil {
		zlog.Error("lookup read status failed", zap.String("user_id", req.UserId), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return slice.Map(list, func(_ int, src entity.ReadStatus) respond.ReadStatusItem {
		return toReadStatusItem(src)
	}), nil
}

func (s *readStatusServiceImpl) Get(ctx context.Context, userID, notificationID string) (*respond.ReadStatusItem, error) {
	userID, notificationID = strings.TrimSpace(userID), strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return nil, xerr.ErrParam
	}
	st, err := s.repo.Get(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error("get read status failed", zap.String("notification_id", notificationID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	item := toReadStatusItem(*st)
	return &item, nil
}

// MarkRead 先查后写：无行则插入，有行则更新；插入撞唯一索引说明并发插入过，转为更新
func (s *readStatusServiceImpl) MarkRead(ctx context.Context, userID, notificationID string) (*respond.ReadStatusItem, error) {
	userID, notificationID = strings.TrimSpace(userID), strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return nil, xerr.ErrParam
	}
	now := s.now()

	st, err := s.repo.Get(ctx, notificationID, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		st = &entity.ReadStatus{
			NotificationId: notificationID,
			UserId:         userID,
			IsRead:         true,
			ReadAt:         &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = s.repo.Create(ctx, st)
		if err == nil {
			item := toReadStatusItem(*st)
			return &item, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			zlog.Error("insert read status failed", zap.String("notification_id", notificationID), zap.Error(err))
			return nil, xerr.ErrServerError
		}
		if st, err = s.repo.Get(ctx, notificationID, userID); err != nil {
			zlog.Error("reload read status failed", zap.String("notification_id", notificationID), zap.Error(err))
			return nil, xerr.ErrServerError
		}
	case err != nil:
		zlog.Error("get read status failed", zap.String("notification_id", notificationID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	if !st.IsRead {
		if err := s.repo.MarkRead(ctx, st.Id, now); err != nil {
			zlog.Error("update read status failed", zap.String("notification_id", notificationID), zap.Error(err))
			return nil, xerr.ErrServerError
		}
		st.IsRead = true
		st.ReadAt = &now
	}
	item := toReadStatusItem(*st)
	return &item, nil
}

func (s *readStatusServiceImpl) BatchInsert(ctx context.Context, req request.NotificationIdsRequest) (*respond.BatchResult, error) {
	ids, err := normalizeIds(req)
	if err != nil {
		return nil, err
	}
	if err := s.insertRead(ctx, req.UserId, ids, s.now()); err != nil {
		return nil, xerr.ErrServerError
	}
	return &respond.BatchResult{Affected: int64(len(ids))}, nil
}

func (s *readStatusServiceImpl) BatchUpdate(ctx context.Context, req request.NotificationIdsRequest) (*respond.BatchResult, error) {
	ids, err := normalizeIds(req)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.BatchMarkRead(ctx, req.UserId, ids, s.now())
	if err != nil {
		zlog.Error("batch update read status failed", zap.String("user_id", req.UserId), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return &respond.BatchResult{Affected: n}, nil
}

// MarkAllRead 已有行的批量更新，没有行的批量插入，两批并行
func (s *readStatusServiceImpl) MarkAllRead(ctx context.Context, req request.NotificationIdsRequest) (*respond.MarkAllReadRespond, error) {
	ids, err := normalizeIds(req)
	if err != nil {
		return nil, err
	}
	res := &respond.MarkAllReadRespond{}
	if len(ids) == 0 {
		return res, nil
	}

	existing, err := s.repo.ListByNotificationIDs(ctx, req.UserId, ids)
	if err != nil {
		zlog.Error("lookup read status failed", zap.String("user_id", req.UserId), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	hasRow := make(map[string]struct{}, len(existing))
	for _, st := range existing {
		hasRow[st.NotificationId] = struct{}{}
	}
	toUpdate := slice.FilterMap(existing, func(_ int, src entity.ReadStatus) (string, bool) {
		return src.NotificationId, !src.IsRead
	})
	toInsert := slice.FilterMap(ids, func(_ int, id string) (string, bool) {
		_, ok := hasRow[id]
		return id, !ok
	})

	now := s.now()
	var eg errgroup.Group
	if len(toUpdate) > 0 {
		eg.Go(func() error {
			n, err := s.repo.BatchMarkRead(ctx, req.UserId, toUpdate, now)
			res.Updated = n
			if err != nil {
				zlog.Error("batch update read status failed", zap.String("user_id", req.UserId), zap.Error(err))
			}
			return err
		})
	}
	if len(toInsert) > 0 {
		eg.Go(func() error {
			err := s.insertRead(ctx, req.UserId, toInsert, now)
			if err == nil {
				res.Inserted = int64(len(toInsert))
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, xerr.ErrServerError
	}
	return res, nil
}

func (s *readStatusServiceImpl) insertRead(ctx context.Context, userID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	rows := slice.Map(ids, func(_ int, id string) entity.ReadStatus {
		return entity.ReadStatus{
			NotificationId: id,
			UserId:         userID,
			IsRead:         true,
			ReadAt:         &at,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
	})
	if err := s.repo.BatchCreate(ctx, rows); err != nil {
		zlog.Error("batch insert read status failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func normalizeIds(req request.NotificationIdsRequest) ([]string, error) {
	if strings.TrimSpace(req.UserId) == "" {
		return nil, xerr.ErrParam
	}
	return util.UniqueStrings(req.NotificationIds), nil
}

func toReadStatusItem(st entity.ReadStatus) respond.ReadStatusItem {
	return respond.ReadStatusItem{
		NotificationId: st.NotificationId,
		Read:           st.IsRead,
		ReadAt:         st.ReadAt,
	}
}
