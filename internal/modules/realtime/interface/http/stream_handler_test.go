package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"LeadPulse/internal/modules/realtime/application/service"
	"LeadPulse/pkg/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdentity struct{}

// 约定：token=ok 通过，token=outsider 非成员，其余未认证
func (stubIdentity) Authenticate(_ context.Context, r *http.Request, _ string) (*service.Identity, error) {
	switch r.URL.Query().Get("token") {
	case "ok":
		return &service.Identity{UserID: "U1"}, nil
	case "outsider":
		return nil, service.ErrForbidden
	default:
		return nil, service.ErrUnauthenticated
	}
}

func newServer(t *testing.T) (*httptest.Server, *stream.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := stream.NewRegistry()
	h := NewStreamHandler(stubIdentity{}, reg, 16, time.Second)
	r := gin.New()
	r.GET("/workspaces/:workspaceId/stream", h.Connect)
	r.GET("/workspaces/:workspaceId/ws", h.ConnectWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, reg
}

func readLine(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return line
		}
	}
}

func TestStreamHandler_RejectsUnauthorized(t *testing.T) {
	srv, reg := newServer(t)

	testCases := []struct {
		name string
		path string
		want int
	}{
		{name: "sse no token", path: "/workspaces/W1/stream", want: http.StatusUnauthorized},
		{name: "sse outsider", path: "/workspaces/W1/stream?token=outsider", want: http.StatusForbidden},
		{name: "ws no token", path: "/workspaces/W1/ws", want: http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
	assert.Zero(t, reg.Workspaces())
}

func TestStreamHandler_SSELifecycle(t *testing.T) {
	srv, reg := newServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/workspaces/W1/stream?token=ok", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	assert.Equal(t, `data:{"type":"connected"}`, readLine(t, br))
	require.Equal(t, 1, reg.Count("W1"))

	delivered := reg.Fanout("W1", []byte(`{"type":"created","lead_id":"L1"}`))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, `data:{"type":"created","lead_id":"L1"}`, readLine(t, br))

	conns := reg.Snapshot("W1")
	require.Len(t, conns, 1)
	require.NoError(t, conns[0].Push(stream.Frame{Heartbeat: true}, time.Now()))
	assert.Equal(t, ": heartbeat", readLine(t, br))

	cancel()
	assert.Eventually(t, func() bool { return !reg.Has("W1") }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_SSEEndsWhenDeregistered(t *testing.T) {
	srv, reg := newServer(t)

	resp, err := http.Get(srv.URL + "/workspaces/W1/stream?token=ok")
	require.NoError(t, err)
	defer resp.Body.Close()
	br := bufio.NewReader(resp.Body)
	readLine(t, br)

	conns := reg.Snapshot("W1")
	require.Len(t, conns, 1)
	assert.True(t, reg.Deregister("W1", conns[0]))

	_, err = br.ReadString('\n')
	assert.Error(t, err, "server closes the stream once the connection is removed")
}

func TestStreamHandler_WebSocketLifecycle(t *testing.T) {
	srv, reg := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/workspaces/W1/ws?token=ok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(msg))
	require.Equal(t, 1, reg.Count("W1"))

	reg.Fanout("W1", []byte(`{"type":"assigned","lead_id":"L2"}`))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"assigned","lead_id":"L2"}`, string(msg))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !reg.Has("W1") }, 2*time.Second, 10*time.Millisecond)
}
