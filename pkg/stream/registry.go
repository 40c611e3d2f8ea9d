package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LeadPulse/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Registry 按 workspace 维护当前在线的推送连接
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*Connection]struct{}

	heartbeat time.Duration
	now       func() time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

type RegistryOption func(*Registry)

func WithHeartbeatInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:     make(map[string]map[*Connection]struct{}),
		heartbeat: DefaultHeartbeatInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(workspaceID string, c *Connection) {
	if c == nil || workspaceID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[workspaceID]
	if set == nil {
		set = make(map[*Connection]struct{})
		r.conns[workspaceID] = set
	}
	set[c] = struct{}{}
}

// Deregister 移除连接并关闭其 sink；重复调用安全，返回本次是否真正移除
func (r *Registry) Deregister(workspaceID string, c *Connection) bool {
	if c == nil || workspaceID == "" {
		return false
	}
	removed := false
	r.mu.Lock()
	if set := r.conns[workspaceID]; set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			removed = true
		}
		if len(set) == 0 {
			delete(r.conns, workspaceID)
		}
	}
	r.mu.Unlock()
	// 只关闭确实属于该 workspace 的连接，错误的 workspaceID 不影响仍在线的连接
	if removed {
		c.Close()
	}
	return removed
}

// Snapshot 返回 workspace 下连接的拷贝，遍历期间的注册/注销不影响结果
func (r *Registry) Snapshot(workspaceID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[workspaceID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Count(workspaceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[workspaceID])
}

func (r *Registry) Has(workspaceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[workspaceID]
	return ok
}

func (r *Registry) Workspaces() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Fanout 把已序列化的 payload 推给 workspace 下所有连接，单个连接失败只注销它自己
func (r *Registry) Fanout(workspaceID string, payload []byte) int {
	conns := r.Snapshot(workspaceID)
	if len(conns) == 0 {
		return 0
	}
	now := r.now()
	delivered := 0
	for _, c := range conns {
		if err := c.Push(Frame{Data: payload}, now); err != nil {
			zlog.Debug("stream push failed, dropping connection",
				zap.String("workspace_id", workspaceID),
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			r.Deregister(workspaceID, c)
			continue
		}
		delivered++
	}
	return delivered
}

// Publish 让 Registry 直接作为单机 Publisher 使用
func (r *Registry) Publish(_ context.Context, workspaceID string, payload []byte) error {
	r.Fanout(workspaceID, payload)
	return nil
}

type sweepEntry struct {
	workspaceID string
	conn        *Connection
}

// Sweep 给空闲超过心跳间隔的连接发送心跳帧，发送失败则注销；返回发送的心跳数
func (r *Registry) Sweep() int {
	now := r.now()
	// cron 触发有毫秒级漂移，上一轮刚发过心跳的连接这一轮也要算作空闲
	threshold := r.heartbeat - r.heartbeat/10

	r.mu.RLock()
	var idle []sweepEntry
	for ws, set := range r.conns {
		for c := range set {
			if now.Sub(c.LastActive()) >= threshold {
				idle = append(idle, sweepEntry{workspaceID: ws, conn: c})
			}
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, e := range idle {
		if err := e.conn.Push(Frame{Heartbeat: true}, now); err != nil {
			zlog.Debug("heartbeat failed, dropping connection",
				zap.String("workspace_id", e.workspaceID),
				zap.String("conn_id", e.conn.ID()),
				zap.Error(err))
			r.Deregister(e.workspaceID, e.conn)
			continue
		}
		sent++
	}
	return sent
}

// Start 启动心跳巡检任务
func (r *Registry) Start() error {
	r.cronMu.Lock()
	defer r.cronMu.Unlock()
	if r.cron != nil {
		return errors.New("stream registry already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.heartbeat), func() { r.Sweep() }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	zlog.Info("stream registry heartbeat started", zap.Duration("interval", r.heartbeat))
	return nil
}

// Shutdown 停止心跳任务并关闭所有连接
func (r *Registry) Shutdown(ctx context.Context) {
	r.cronMu.Lock()
	c := r.cron
	r.cron = nil
	r.cronMu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string]map[*Connection]struct{})
	r.mu.Unlock()
	for _, set := range all {
		for conn := range set {
			conn.Close()
		}
	}
}
