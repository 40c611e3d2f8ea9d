package ws

import (
	"context"
	"time"

	"LeadPulse/pkg/stream"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client 把 stream.ChanSink 中的帧写到一条 websocket 连接上。
// 数据帧走 TextMessage，心跳帧走 Ping 控制帧
type Client struct {
	conn     *websocket.Conn
	sink     *stream.ChanSink
	pongWait time.Duration
}

// NewClient pongWait 通常取心跳间隔的两倍，超时未收到任何帧视为断开
func NewClient(conn *websocket.Conn, sink *stream.ChanSink, pongWait time.Duration) *Client {
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	return &Client{conn: conn, sink: sink, pongWait: pongWait}
}

// ReadPump 丢弃客户端消息，仅用于感知断开和处理 pong；返回即连接已断
func (c *Client) ReadPump() error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

// WritePump 阻塞直到 ctx 取消、sink 关闭或写失败
func (c *Client) WritePump(ctx context.Context) error {
	defer func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.sink.Done():
			return stream.ErrConnectionClosed
		case f := <-c.sink.Frames():
			if err := c.write(f); err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(f stream.Frame) error {
	deadline := time.Now().Add(writeWait)
	if f.Heartbeat {
		return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, f.Data)
}
