package inbox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSSubscriber 通过 websocket 订阅推送流，服务端心跳为 ping 帧，gorilla 默认自动回 pong
type WSSubscriber struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

func NewWSSubscriber(baseURL, token string, logger *zap.Logger) *WSSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return &WSSubscriber{
		baseURL: base,
		token:   strings.TrimSpace(token),
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

func (s *WSSubscriber) Subscribe(ctx context.Context, workspaceID string) (<-chan Event, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workspaces/%s/ws", s.baseURL, url.PathEscape(workspaceID))
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode}
		}
		return nil, err
	}

	out := make(chan Event, 16)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Info("stream ended", zap.String("workspace_id", workspaceID), zap.Error(err))
				}
				return
			}
			ev, err := ParseEvent(msg)
			if err != nil {
				s.logger.Warn("drop malformed stream frame", zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
