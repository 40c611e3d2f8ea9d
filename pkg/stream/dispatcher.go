package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"LeadPulse/pkg/zlog"

	"go.uber.org/zap"
)

const (
	DefaultBroadcastAttempts = 3
	DefaultRetryDelay        = time.Second
)

// Publisher 投递一个已序列化的 workspace 事件。单机时是 Registry，多实例时是 redis relay
type Publisher interface {
	Publish(ctx context.Context, workspaceID string, payload []byte) error
}

// Dispatcher 尽力而为的广播：至多一次，有界重试，从不把错误抛给调用方
type Dispatcher struct {
	pub      Publisher
	attempts int
	delay    time.Duration

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func WithRetryDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if delay >= 0 {
			d.delay = delay
		}
	}
}

func NewDispatcher(pub Publisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pub:      pub,
		attempts: DefaultBroadcastAttempts,
		delay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Broadcast 序列化一次后投递；workspace 没有连接时什么也不做
func (d *Dispatcher) Broadcast(ctx context.Context, workspaceID string, event any) {
	if workspaceID == "" || d.pub == nil {
		return
	}
	payload, err := encode(event)
	if err != nil {
		zlog.Error("broadcast encode failed", zap.String("workspace_id", workspaceID), zap.Error(err))
		return
	}

	for attempt := 1; ; attempt++ {
		err = d.pub.Publish(ctx, workspaceID, payload)
		if err == nil {
			return
		}
		if attempt >= d.attempts {
			zlog.Error("broadcast dropped after retries",
				zap.String("workspace_id", workspaceID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		zlog.Warn("broadcast attempt failed",
			zap.String("workspace_id", workspaceID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		timer := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			zlog.Warn("broadcast abandoned", zap.String("workspace_id", workspaceID), zap.Error(ctx.Err()))
			return
		case <-timer.C:
		}
	}
}

// BroadcastAsync 在后台广播，调用方不等待
func (d *Dispatcher) BroadcastAsync(workspaceID string, event any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Broadcast(context.Background(), workspaceID, event)
	}()
}

// Wait 等待所有后台广播结束
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func encode(event any) ([]byte, error) {
	switch v := event.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(event)
	}
}
