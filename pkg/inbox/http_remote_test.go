package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": http.StatusText(code), "data": data})
}

func fastRetry() HTTPRemoteOption {
	return WithRetry(3, time.Millisecond, 5*time.Millisecond)
}

func TestHTTPRemote_ListNotificationsPages(t *testing.T) {
	const total = 250
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/workspaces/W1/notifications", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		assert.Equal(t, 200, size)

		var items []Notification
		for i := (page - 1) * size; i < page*size && i < total; i++ {
			items = append(items, Notification{ID: fmt.Sprintf("N%d", i), WorkspaceID: "W1"})
		}
		writeEnvelope(w, http.StatusOK, 200, map[string]any{"items": items, "total": total, "page": page, "page_size": size})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL+"/", "tok", WithSnapshotLimit(1000))
	list, err := remote.ListNotifications(context.Background(), "W1")
	require.NoError(t, err)
	assert.Len(t, list, total)
	assert.Equal(t, "N0", list[0].ID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTPRemote_ListNotificationsCapsAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		items := make([]Notification, size)
		for i := range items {
			items[i] = Notification{ID: strconv.Itoa(i)}
		}
		writeEnvelope(w, http.StatusOK, 200, map[string]any{"items": items, "total": 10_000})
	}))
	defer srv.Close()

	list, err := NewHTTPRemote(srv.URL, "", WithSnapshotLimit(5)).ListNotifications(context.Background(), "W1")
	require.NoError(t, err)
	assert.Len(t, list, 5)
}

func TestHTTPRemote_ReadStatusCalls(t *testing.T) {
	type seen struct {
		method, path string
		ids          []string
	}
	var (
		mu  sync.Mutex
		got []seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body idsBody
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		mu.Lock()
		got = append(got, seen{method: r.Method, path: r.URL.Path, ids: body.NotificationIDs})
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/read-status/lookup":
			writeEnvelope(w, http.StatusOK, 200, []ReadStatus{{NotificationID: "N1", Read: true}})
		case "/api/v1/read-status/N1":
			writeEnvelope(w, http.StatusOK, 200, ReadStatus{NotificationID: "N1", Read: true})
		case "/api/v1/read-status/N2":
			writeEnvelope(w, http.StatusOK, 404, nil)
		default:
			writeEnvelope(w, http.StatusOK, 200, map[string]int{"affected": len(body.NotificationIDs)})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	remote := NewHTTPRemote(srv.URL, "tok")

	rows, err := remote.LookupReadStatus(ctx, []string{"N1", "N2"})
	require.NoError(t, err)
	assert.Equal(t, []ReadStatus{{NotificationID: "N1", Read: true}}, rows)

	st, err := remote.GetReadStatus(ctx, "N1")
	require.NoError(t, err)
	assert.True(t, st.Read)

	_, err = remote.GetReadStatus(ctx, "N2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, remote.InsertReadStatus(ctx, []string{"N2"}))
	require.NoError(t, remote.UpdateReadStatus(ctx, []string{"N3", "N4"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 5)
	assert.Equal(t, seen{http.MethodPost, "/api/v1/read-status/lookup", []string{"N1", "N2"}}, got[0])
	assert.Equal(t, seen{http.MethodPost, "/api/v1/read-status/batch", []string{"N2"}}, got[3])
	assert.Equal(t, seen{http.MethodPut, "/api/v1/read-status/batch", []string{"N3", "N4"}}, got[4])
}

func TestHTTPRemote_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			writeEnvelope(w, http.StatusServiceUnavailable, 503, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, 200, []ReadStatus{})
	}))
	defer srv.Close()

	_, err := NewHTTPRemote(srv.URL, "", fastRetry()).LookupReadStatus(context.Background(), []string{"N1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPRemote_Errors(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		code      int
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name:      "client error is not retried",
			status:    http.StatusBadRequest,
			code:      400,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
				assert.Equal(t, "Bad Request", httpErr.Message)
			},
		},
		{
			name:      "server error after retries",
			status:    http.StatusInternalServerError,
			code:      500,
			wantCalls: 4,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
			},
		},
		{
			name:      "business code",
			status:    http.StatusOK,
			code:      403,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 403, apiErr.Code)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeEnvelope(w, tc.status, tc.code, nil)
			}))
			defer srv.Close()

			err := NewHTTPRemote(srv.URL, "", fastRetry()).UpdateReadStatus(context.Background(), []string{"N1"})
			tc.check(t, err)
			assert.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

func TestHTTPRemote_BreakerOpensOnServerFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadGateway, 502, nil)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "", WithRetry(0, 0, 0))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := remote.GetReadStatus(ctx, "N1")
		require.Error(t, err)
	}
	_, err := remote.GetReadStatus(ctx, "N1")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.EqualValues(t, 4, calls.Load())
}

func TestHTTPRemote_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, 404, nil)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "")
	for i := 0; i < 10; i++ {
		_, err := remote.GetReadStatus(context.Background(), "N1")
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestRetryDelay(t *testing.T) {
	r := &HTTPRemote{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}
	testCases := []struct {
		name       string
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{name: "first", attempt: 1, want: 100 * time.Millisecond},
		{name: "backoff", attempt: 3, want: 400 * time.Millisecond},
		{name: "capped", attempt: 8, want: time.Second},
		{name: "retry after", attempt: 1, retryAfter: "1", want: time.Second},
		{name: "retry after capped", attempt: 1, retryAfter: "30", want: time.Second},
		{name: "garbage header", attempt: 2, retryAfter: "soon", want: 200 * time.Millisecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.retryDelay(tc.attempt, tc.retryAfter))
		})
	}
}

func TestWaitWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitWithContext(ctx, time.Minute), context.Canceled)
	assert.NoError(t, waitWithContext(ctx, 0))
}
