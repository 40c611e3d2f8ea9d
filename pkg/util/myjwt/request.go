package myjwt

import (
	"net/http"
	"strings"
)

const SessionCookie = "session"

// TokenFromRequest 依次从 Authorization 头、session cookie、token 查询参数取令牌。
// 浏览器原生 EventSource / WebSocket 无法自定义请求头，所以后两者也要支持
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
