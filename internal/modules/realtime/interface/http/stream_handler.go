package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"LeadPulse/internal/modules/realtime/application/service"
	"LeadPulse/pkg/back"
	"LeadPulse/pkg/stream"
	"LeadPulse/pkg/ws"
	"LeadPulse/pkg/zlog"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connectedFrame 握手帧，客户端据此区分“已连上但暂无数据”和“未连上”
var connectedFrame = []byte(`{"type":"connected"}`)

const heartbeatComment = ": heartbeat\n\n"

type StreamHandler struct {
	identity   service.IdentityService
	registry   *stream.Registry
	sendBuffer int
	heartbeat  time.Duration
}

func NewStreamHandler(identity service.IdentityService, registry *stream.Registry, sendBuffer int, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = stream.DefaultHeartbeatInterval
	}
	return &StreamHandler{
		identity:   identity,
		registry:   registry,
		sendBuffer: sendBuffer,
		heartbeat:  heartbeat,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connect text/event-stream 长连接
func (h *StreamHandler) Connect(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	id, ok := h.authenticate(c, workspaceID)
	if !ok {
		return
	}

	conn, sink := h.open(workspaceID, id.UserID)
	defer h.registry.Deregister(workspaceID, conn)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sink.Done():
			return
		case f := <-sink.Frames():
			if err := writeSSE(w, f); err != nil {
				zlog.Debug("sse write failed", zap.String("workspace_id", workspaceID), zap.Error(err))
				return
			}
			w.Flush()
		}
	}
}

// ConnectWS websocket 版本，帧内容与 SSE 相同
func (h *StreamHandler) ConnectWS(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	id, ok := h.authenticate(c, workspaceID)
	if !ok {
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn, sink := h.open(workspaceID, id.UserID)
	defer h.registry.Deregister(workspaceID, conn)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	client := ws.NewClient(wsConn, sink, 2*h.heartbeat)
	go func() {
		defer cancel()
		_ = client.ReadPump()
	}()
	if err := client.WritePump(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, stream.ErrConnectionClosed) {
		zlog.Debug("websocket write failed", zap.String("workspace_id", workspaceID), zap.Error(err))
	}
}

func (h *StreamHandler) authenticate(c *gin.Context, workspaceID string) (*service.Identity, bool) {
	id, err := h.identity.Authenticate(c.Request.Context(), c.Request, workspaceID)
	switch {
	case err == nil:
		return id, true
	case errors.Is(err, service.ErrUnauthenticated):
		back.Abort(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		back.Abort(c, http.StatusForbidden, "forbidden")
	default:
		back.Abort(c, http.StatusInternalServerError, "internal error")
	}
	return nil, false
}

// open 先把握手帧放进缓冲再注册，保证 connected 一定是第一帧
func (h *StreamHandler) open(workspaceID, userID string) (*stream.Connection, *stream.ChanSink) {
	sink := stream.NewChanSink(h.sendBuffer)
	_ = sink.Send(stream.Frame{Data: connectedFrame})
	conn := stream.NewConnection(workspaceID, userID, sink, time.Now())
	h.registry.Register(workspaceID, conn)
	zlog.Info("stream connected",
		zap.String("workspace_id", workspaceID),
		zap.String("user_id", userID),
		zap.String("conn_id", conn.ID()))
	return conn, sink
}

func writeSSE(w io.Writer, f stream.Frame) error {
	if f.Heartbeat {
		_, err := io.WriteString(w, heartbeatComment)
		return err
	}
	return sse.Encode(w, sse.Event{Data: string(f.Data)})
}
