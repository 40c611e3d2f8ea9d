package inbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const maxFrameSize = 1 << 20

// SSESubscriber 订阅 text/event-stream 推送流
type SSESubscriber struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSSESubscriber httpClient 不能设置整体超时，长连接由 ctx 控制
func NewSSESubscriber(baseURL, token string, httpClient *http.Client, logger *zap.Logger) *SSESubscriber {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSESubscriber{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (s *SSESubscriber) Subscribe(ctx context.Context, workspaceID string) (<-chan Event, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workspaces/%s/stream", s.baseURL, url.PathEscape(workspaceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		err := readSSE(resp.Body, func(data []byte) bool {
			ev, err := ParseEvent(data)
			if err != nil {
				s.logger.Warn("drop malformed stream frame", zap.Error(err))
				return true
			}
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Info("stream ended", zap.String("workspace_id", workspaceID), zap.Error(err))
		}
	}()
	return out, nil
}

// readSSE 逐行解析，多行 data 以换行拼接，空行分帧，注释行（心跳）忽略
func readSSE(r io.Reader, emit func(data []byte) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)

	var data []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			frame := strings.Join(data, "\n")
			data = data[:0]
			if !emit([]byte(frame)) {
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
