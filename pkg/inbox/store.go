package inbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type record struct {
	n      Notification
	read   bool
	source ReadSource
	// touched 最近一次被快照或推送写入时的序号，readGen 最近一次本地已读变更的序号
	touched uint64
	readGen uint64
}

// Store 单个 workspace 的通知视图：定时快照 + 推送增量 + 按用户的已读状态。
// 所有状态变更都在同一个 loop goroutine 中执行；网络请求在独立 goroutine 中发出，结果再投递回 loop
type Store struct {
	workspaceID string
	viewerID    string
	remote      Remote
	sub         Subscriber

	pollInterval   time.Duration
	reconnectDelay time.Duration
	onChange       func(View)
	onEvent        func(Event)
	logger         *zap.Logger

	mu      sync.RWMutex
	records map[string]*record

	// 以下字段只在 loop goroutine 中读写
	seq           uint64
	fetching      bool
	fetchAgain    bool
	subscribing   bool
	everConnected bool
	events        <-chan Event
	resub         *time.Timer
	resubC        <-chan time.Time

	ops     chan func()
	refetch chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 创建并启动 Store，立即拉取首个快照并订阅推送；sub 为 nil 时只靠轮询
func New(workspaceID string, remote Remote, sub Subscriber, opts ...Option) (*Store, error) {
	if workspaceID == "" {
		return nil, errors.New("inbox: workspace id is empty")
	}
	if remote == nil {
		return nil, errors.New("inbox: remote is nil")
	}
	s := &Store{
		workspaceID:    workspaceID,
		remote:         remote,
		sub:            sub,
		pollInterval:   DefaultPollInterval,
		reconnectDelay: DefaultReconnectDelay,
		logger:         zap.NewNop(),
		records:        make(map[string]*record),
		ops:            make(chan func()),
		refetch:        make(chan struct{}, 1),
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close 取消订阅、停止所有定时器并等待后台 goroutine 退出
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

// Ready 首个快照合并且已读状态校正完成后关闭，此前的已读标记只是推断值
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Refetch 请求一次按需快照，进行中的快照结束后合并执行
func (s *Store) Refetch() {
	select {
	case s.refetch <- struct{}{}:
	default:
	}
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{Records: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		v.Records = append(v.Records, Record{Notification: r.n, Read: r.read, Source: r.source})
		if !r.read {
			v.Unread++
		}
	}
	sort.Slice(v.Records, func(i, j int) bool {
		a, b := v.Records[i], v.Records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return v
}

// Unread 总是由记录集合现算
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if !r.read {
			n++
		}
	}
	return n
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return Record{Notification: r.n, Read: r.read, Source: r.source}, true
}

// MarkRead 本地立即置为已读，再写服务端：无行插入，有行更新。
// 服务端失败时返回错误但不回滚，记录保持 pending，后续校正不会把它改回未读
func (s *Store) MarkRead(ctx context.Context, id string) error {
	var known, skip bool
	err := s.do(func() {
		s.mu.Lock()
		r, ok := s.records[id]
		if ok {
			known = true
			if r.read && r.source == SourceServer {
				skip = true
			} else {
				s.flip(r)
			}
		}
		s.mu.Unlock()
		if known && !skip {
			s.changed()
		}
	})
	if err != nil {
		return err
	}
	if !known {
		return ErrUnknownID
	}
	if skip {
		return nil
	}

	if err := s.persistRead(ctx, id); err != nil {
		s.logger.Warn("mark read failed, keeping local state", zap.String("notification_id", id), zap.Error(err))
		return err
	}
	_ = s.do(func() { s.confirm([]string{id}) })
	return nil
}

// MarkAllRead 未读集合按服务端是否已有行拆成一次批量更新和一次批量插入，并行执行。
// 到达时推断为已读的记录服务端还没有行，一并写入
func (s *Store) MarkAllRead(ctx context.Context) error {
	var ids []string
	err := s.do(func() {
		s.mu.Lock()
		for id, r := range s.records {
			if !r.read || r.source == SourceArrival {
				ids = append(ids, id)
				s.flip(r)
			}
		}
		s.mu.Unlock()
		if len(ids) > 0 {
			s.changed()
		}
	})
	if err != nil || len(ids) == 0 {
		return err
	}

	existing, err := s.remote.LookupReadStatus(ctx, ids)
	if err != nil {
		s.logger.Warn("mark all read lookup failed, keeping local state", zap.Int("count", len(ids)), zap.Error(err))
		return err
	}
	rows := make(map[string]bool, len(existing))
	for _, st := range existing {
		rows[st.NotificationID] = st.Read
	}
	toUpdate := slice.FilterMap(ids, func(_ int, id string) (string, bool) {
		read, ok := rows[id]
		return id, ok && !read
	})
	toInsert := slice.FilterMap(ids, func(_ int, id string) (string, bool) {
		_, ok := rows[id]
		return id, !ok
	})

	var (
		g              multierror.Group
		updErr, insErr error
	)
	if len(toUpdate) > 0 {
		g.Go(func() error {
			updErr = s.remote.UpdateReadStatus(ctx, toUpdate)
			return updErr
		})
	}
	if len(toInsert) > 0 {
		g.Go(func() error {
			insErr = s.remote.InsertReadStatus(ctx, toInsert)
			return insErr
		})
	}
	merr := g.Wait()

	confirmed := slice.FilterMap(ids, func(_ int, id string) (string, bool) {
		read, ok := rows[id]
		switch {
		case ok && read:
			return id, true
		case ok:
			return id, updErr == nil
		default:
			return id, insErr == nil
		}
	})
	_ = s.do(func() { s.confirm(confirmed) })

	if err := merr.ErrorOrNil(); err != nil {
		s.logger.Warn("mark all read partially failed, keeping local state", zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) persistRead(ctx context.Context, id string) error {
	st, err := s.remote.GetReadStatus(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.remote.InsertReadStatus(ctx, []string{id})
	case err != nil:
		return err
	case !st.Read:
		return s.remote.UpdateReadStatus(ctx, []string{id})
	}
	return nil
}

// flip 调用方持有 s.mu
func (s *Store) flip(r *record) {
	s.seq++
	r.read = true
	r.source = SourcePending
	r.readGen = s.seq
}

// confirm 服务端写入成功，清除 pending；同时推进 readGen，让写入前发出的校正请求失效
func (s *Store) confirm(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.seq++
	s.mu.Lock()
	for _, id := range ids {
		if r, ok := s.records[id]; ok && r.source == SourcePending {
			r.source = SourceServer
			r.readGen = s.seq
		}
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	defer func() {
		if s.resub != nil {
			s.resub.Stop()
		}
	}()

	s.startSnapshot()
	s.startSubscribe()
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			op()
		case <-s.refetch:
			s.startSnapshot()
		case <-ticker.C:
			s.startSnapshot()
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				s.scheduleResubscribe()
				continue
			}
			s.handleEvent(ev)
		case <-s.resubC:
			s.resub, s.resubC = nil, nil
			s.startSubscribe()
		}
	}
}

// do 在 loop 中同步执行 op
func (s *Store) do(op func()) error {
	done := make(chan struct{})
	select {
	case s.ops <- func() { defer close(done); op() }:
	case <-s.ctx.Done():
		return ErrStoreClosed
	}
	<-done
	return nil
}

// post 把后台请求的结果投递回 loop，Store 关闭后丢弃
func (s *Store) post(op func()) {
	select {
	case s.ops <- op:
	case <-s.ctx.Done():
	}
}

func (s *Store) startSubscribe() {
	if s.sub == nil || s.subscribing {
		return
	}
	s.subscribing = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ch, err := s.sub.Subscribe(s.ctx, s.workspaceID)
		s.post(func() {
			s.subscribing = false
			if err != nil {
				s.logger.Warn("subscribe failed", zap.String("workspace_id", s.workspaceID), zap.Error(err))
				s.scheduleResubscribe()
				return
			}
			s.events = ch
		})
	}()
}

func (s *Store) scheduleResubscribe() {
	if s.ctx.Err() != nil || s.resub != nil {
		return
	}
	s.resub = time.NewTimer(s.reconnectDelay)
	s.resubC = s.resub.C
}

func (s *Store) handleEvent(ev Event) {
	if ev.Type == EventHeartbeat {
		return
	}
	if s.onEvent != nil {
		s.onEvent(ev)
	}
	switch ev.Type {
	case EventConnected:
		// 重连期间可能漏掉推送，补一次快照
		if s.everConnected {
			s.startSnapshot()
		}
		s.everConnected = true
	case EventNotificationInsert, EventNotificationUpdate:
		if ev.Notification == nil || ev.Notification.ID == "" {
			return
		}
		if ws := ev.Notification.WorkspaceID; ws != "" && ws != s.workspaceID {
			return
		}
		s.applyPush(*ev.Notification)
	default:
		// 线索变更等其它事件：本地缓存可能已过期，按需刷新
		s.startSnapshot()
	}
}

// applyPush 新记录按到达规则推断已读；已知记录替换内容但保留已读状态
func (s *Store) applyPush(n Notification) {
	s.seq++
	s.mu.Lock()
	if r, ok := s.records[n.ID]; ok {
		r.n = n
		r.touched = s.seq
	} else {
		s.records[n.ID] = s.newRecord(n)
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) newRecord(n Notification) *record {
	return &record{
		n:       n,
		read:    s.viewerID != "" && n.UserID == s.viewerID,
		source:  SourceArrival,
		touched: s.seq,
	}
}

func (s *Store) startSnapshot() {
	if s.fetching {
		s.fetchAgain = true
		return
	}
	s.fetching = true
	issued := s.seq
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		list, err := s.remote.ListNotifications(s.ctx, s.workspaceID)
		s.post(func() {
			s.fetching = false
			if err != nil {
				s.logger.Warn("snapshot failed", zap.String("workspace_id", s.workspaceID), zap.Error(err))
			} else {
				s.startReconcile(s.applySnapshot(list, issued))
			}
			if s.fetchAgain {
				s.fetchAgain = false
				s.startSnapshot()
			}
		})
	}()
}

// applySnapshot 合并快照：快照发出后才被推送写入的记录即使不在快照中也保留
func (s *Store) applySnapshot(list []Notification, issued uint64) []string {
	s.seq++
	ids := make([]string, 0, len(list))
	present := make(map[string]struct{}, len(list))

	s.mu.Lock()
	for _, n := range list {
		if n.ID == "" {
			continue
		}
		if _, dup := present[n.ID]; dup {
			continue
		}
		present[n.ID] = struct{}{}
		ids = append(ids, n.ID)
		if r, ok := s.records[n.ID]; ok {
			r.n = n
			r.touched = s.seq
			continue
		}
		s.records[n.ID] = s.newRecord(n)
	}
	for id, r := range s.records {
		if _, ok := present[id]; !ok && r.touched <= issued {
			delete(s.records, id)
		}
	}
	s.mu.Unlock()

	s.changed()
	return ids
}

func (s *Store) startReconcile(ids []string) {
	if len(ids) == 0 {
		s.markReady()
		return
	}
	issued := s.seq
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		statuses, err := s.remote.LookupReadStatus(s.ctx, ids)
		s.post(func() {
			if err != nil {
				s.logger.Warn("read status lookup failed", zap.Int("count", len(ids)), zap.Error(err))
				return
			}
			s.applyReadStatus(ids, statuses, issued)
			s.markReady()
		})
	}()
}

// applyReadStatus 服务端结果覆盖推断值；查询发出后本地已读过的记录跳过，pending 的记录不会被改回未读
func (s *Store) applyReadStatus(ids []string, statuses []ReadStatus, issued uint64) {
	truth := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		truth[st.NotificationID] = st.Read
	}

	s.mu.Lock()
	for _, id := range ids {
		r, ok := s.records[id]
		if !ok || r.readGen > issued {
			continue
		}
		switch {
		case truth[id]:
			r.read = true
			r.source = SourceServer
		case r.source == SourcePending:
		default:
			r.read = false
			r.source = SourceServer
		}
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange(s.View())
	}
}
