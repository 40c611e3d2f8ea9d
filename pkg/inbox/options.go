package inbox

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval   = 90 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

type Option func(*Store)

// WithViewer 当前用户 id，用于到达时的已读推断
func WithViewer(userID string) Option {
	return func(s *Store) {
		s.viewerID = userID
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

// WithOnChange 每次状态变化后在内部 goroutine 中回调，回调里不能同步调用 Store 的方法
func WithOnChange(fn func(View)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// WithOnEvent 收到推送事件（心跳除外）时回调，约束同 WithOnChange
func WithOnEvent(fn func(Event)) Option {
	return func(s *Store) {
		s.onEvent = fn
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
