package stream

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"LeadPulse/pkg/util"
)

var (
	ErrConnectionClosed = errors.New("stream: connection closed")
	ErrSendBufferFull   = errors.New("stream: send buffer full")
)

// Frame 推送给客户端的一帧。Heartbeat 帧不携带数据，由传输层决定如何表达（SSE 注释 / WS ping）
type Frame struct {
	Heartbeat bool
	Data      []byte
}

// Sink 传输层的写端
type Sink interface {
	Send(f Frame) error
	Close() error
}

// Connection 一条已注册的长连接
type Connection struct {
	id          string
	workspaceID string
	userID      string
	sink        Sink
	lastActive  atomic.Int64

	closeOnce sync.Once
}

func NewConnection(workspaceID, userID string, sink Sink, now time.Time) *Connection {
	c := &Connection{
		id:          util.GenerateShortUUID(),
		workspaceID: workspaceID,
		userID:      userID,
		sink:        sink,
	}
	c.lastActive.Store(now.UnixNano())
	return c
}

func (c *Connection) ID() string          { return c.id }
func (c *Connection) WorkspaceID() string { return c.workspaceID }
func (c *Connection) UserID() string      { return c.userID }

func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// Push 写一帧，成功后刷新活跃时间
func (c *Connection) Push(f Frame, now time.Time) error {
	if c.sink == nil {
		return ErrConnectionClosed
	}
	if err := c.sink.Send(f); err != nil {
		return err
	}
	c.lastActive.Store(now.UnixNano())
	return nil
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.sink != nil {
			_ = c.sink.Close()
		}
	})
}

// ChanSink 基于带缓冲 channel 的 Sink，由连接所在的 handler goroutine 负责真正写出
type ChanSink struct {
	frames chan Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewChanSink(buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSink{
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *ChanSink) Send(f Frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrConnectionClosed
	}
	select {
	case s.frames <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 只关闭 done，frames 保持打开，并发的 Send 不会 panic
func (s *ChanSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *ChanSink) Frames() <-chan Frame   { return s.frames }
func (s *ChanSink) Done() <-chan struct{} { return s.done }
