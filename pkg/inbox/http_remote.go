package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	codeOK       = 200
	codeNotFound = 404

	defaultSnapshotLimit = 200
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type snapshotPage struct {
	Items    []Notification `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type idsBody struct {
	NotificationIDs []string `json:"notification_ids"`
}

// HTTPRemote 通过 LeadPulse 的 REST 接口实现 Remote
type HTTPRemote struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	snapshotLimit int
}

type HTTPRemoteOption func(*HTTPRemote)

func WithHTTPClient(hc *http.Client) HTTPRemoteOption {
	return func(r *HTTPRemote) {
		if hc != nil {
			r.httpClient = hc
		}
	}
}

func WithRetry(maxRetries int, baseDelay, maxDelay time.Duration) HTTPRemoteOption {
	return func(r *HTTPRemote) {
		r.maxRetries = maxRetries
		r.baseDelay = baseDelay
		r.maxDelay = maxDelay
	}
}

// WithSnapshotLimit 一次快照最多拉取的条数
func WithSnapshotLimit(n int) HTTPRemoteOption {
	return func(r *HTTPRemote) {
		if n > 0 {
			r.snapshotLimit = n
		}
	}
}

func WithBreakerSettings(st gobreaker.Settings) HTTPRemoteOption {
	return func(r *HTTPRemote) {
		if st.IsSuccessful == nil {
			st.IsSuccessful = breakerSuccessful
		}
		r.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func NewHTTPRemote(baseURL, token string, opts ...HTTPRemoteOption) *HTTPRemote {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	r := &HTTPRemote{
		baseURL:       baseURL,
		token:         strings.TrimSpace(token),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		maxRetries:    3,
		baseDelay:     100 * time.Millisecond,
		maxDelay:      2 * time.Second,
		snapshotLimit: defaultSnapshotLimit,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "leadpulse-remote",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: breakerSuccessful,
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPRemote) ListNotifications(ctx context.Context, workspaceID string) ([]Notification, error) {
	var all []Notification
	pageSize := r.snapshotLimit
	if pageSize > defaultSnapshotLimit {
		pageSize = defaultSnapshotLimit
	}
	for page := 1; len(all) < r.snapshotLimit; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))
		var out snapshotPage
		path := fmt.Sprintf("/api/v1/workspaces/%s/notifications?%s", url.PathEscape(workspaceID), q.Encode())
		if err := r.call(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Items...)
		if len(out.Items) < pageSize || int64(len(all)) >= out.Total {
			break
		}
	}
	if len(all) > r.snapshotLimit {
		all = all[:r.snapshotLimit]
	}
	return all, nil
}

func (r *HTTPRemote) LookupReadStatus(ctx context.Context, ids []string) ([]ReadStatus, error) {
	var out []ReadStatus
	if err := r.call(ctx, http.MethodPost, "/api/v1/read-status/lookup", idsBody{NotificationIDs: ids}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRemote) GetReadStatus(ctx context.Context, id string) (*ReadStatus, error) {
	var out ReadStatus
	if err := r.call(ctx, http.MethodGet, "/api/v1/read-status/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) InsertReadStatus(ctx context.Context, ids []string) error {
	return r.call(ctx, http.MethodPost, "/api/v1/read-status/batch", idsBody{NotificationIDs: ids}, nil)
}

func (r *HTTPRemote) UpdateReadStatus(ctx context.Context, ids []string) error {
	return r.call(ctx, http.MethodPut, "/api/v1/read-status/batch", idsBody{NotificationIDs: ids}, nil)
}

func (r *HTTPRemote) call(ctx context.Context, method, path string, body, out any) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.doJSON(ctx, method, path, body, out)
	})
	return err
}

// doJSON 429 与 5xx 按指数退避重试，业务码 404 转为 ErrNotFound
func (r *HTTPRemote) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
		if err != nil {
			return err
		}
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < r.maxRetries {
				if waitErr := waitWithContext(ctx, r.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt < r.maxRetries {
				if waitErr := waitWithContext(ctx, r.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
					return waitErr
				}
				continue
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			var env envelope
			_ = json.Unmarshal(payload, &env)
			return &HTTPError{StatusCode: resp.StatusCode, Message: env.Message}
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("inbox: decode response: %w", err)
		}
		switch env.Code {
		case codeOK:
		case codeNotFound:
			return ErrNotFound
		default:
			return &APIError{Code: env.Code, Message: env.Message}
		}
		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		return json.Unmarshal(env.Data, out)
	}
}

func (r *HTTPRemote) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := r.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := r.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// breakerSuccessful 客户端错误和“未找到”不计入熔断
func breakerSuccessful(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code < 500
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
