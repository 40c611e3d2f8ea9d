package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"LeadPulse/internal/modules/notification/domain/entity"

	"gorm.io/gorm"
)

type statusKey struct{ notification, user string }

type fakeReadStatusRepo struct {
	mu     sync.Mutex
	rows   map[statusKey]*entity.ReadStatus
	nextID int64

	createCalls      int
	markReadCalls    int
	batchCreateCalls int
	batchMarkCalls   int

	// 模拟并发插入：Create 前先由“另一个请求”写入一行
	raceOnCreate bool
	failBatch    error
}

func newFakeReadStatusRepo() *fakeReadStatusRepo {
	return &fakeReadStatusRepo{rows: map[statusKey]*entity.ReadStatus{}}
}

func (r *fakeReadStatusRepo) put(st entity.ReadStatus) {
	r.nextID++
	st.Id = r.nextID
	r.rows[statusKey{st.NotificationId, st.UserId}] = &st
}

func (r *fakeReadStatusRepo) Get(_ context.Context, notificationID, userID string) (*entity.ReadStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rows[statusKey{notificationID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *fakeReadStatusRepo) Create(_ context.Context, st *entity.ReadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	key := statusKey{st.NotificationId, st.UserId}
	if r.raceOnCreate {
		r.raceOnCreate = false
		r.put(entity.ReadStatus{NotificationId: st.NotificationId, UserId: st.UserId})
	}
	if _, ok := r.rows[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.put(*st)
	st.Id = r.nextID
	return nil
}

func (r *fakeReadStatusRepo) MarkRead(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markReadCalls++
	for _, st := range r.rows {
		if st.Id == id {
			st.IsRead = true
			st.ReadAt = &at
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeReadStatusRepo) ListByNotificationIDs(_ context.Context, userID string, ids []string) ([]entity.ReadStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ReadStatus
	for _, id := range ids {
		if st, ok := r.rows[statusKey{id, userID}]; ok {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (r *fakeReadStatusRepo) BatchCreate(_ context.Context, rows []entity.ReadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCreateCalls++
	if r.failBatch != nil {
		return r.failBatch
	}
	for _, st := range rows {
		if existing, ok := r.rows[statusKey{st.NotificationId, st.UserId}]; ok {
			existing.IsRead, existing.ReadAt = st.IsRead, st.ReadAt
			continue
		}
		r.put(st)
	}
	return nil
}

func (r *fakeReadStatusRepo) BatchMarkRead(_ context.Context, userID string, ids []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchMarkCalls++
	var n int64
	for _, id := range ids {
		if st, ok := r.rows[statusKey{id, userID}]; ok {
			st.IsRead = true
			st.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (r *fakeReadStatusRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	items   []entity.Notification
	failErr error
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	n.Id = int64(len(r.items) + 1)
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotificationRepo) GetByUUID(_ context.Context, uuid string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.Uuid == uuid {
			cp := n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeNotificationRepo) ListByWorkspace(_ context.Context, ws string, offset, limit int) ([]entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	var matched []entity.Notification
	for _, n := range r.items {
		if n.WorkspaceId == ws {
			matched = append(matched, n)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *fakeNotificationRepo) CountByWorkspace(_ context.Context, ws string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return 0, r.failErr
	}
	var n int64
	for _, item := range r.items {
		if item.WorkspaceId == ws {
			n++
		}
	}
	return n, nil
}

type broadcastCall struct {
	workspace string
	event     any
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *fakeBroadcaster) BroadcastAsync(ws string, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{workspace: ws, event: event})
}

var errBoom = errors.New("boom")
