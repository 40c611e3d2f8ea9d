package myjwt

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	header := httptest.NewRequest(http.MethodGet, "/stream?token=q", nil)
	header.Header.Set("Authorization", "Bearer h")
	header.AddCookie(&http.Cookie{Name: SessionCookie, Value: "c"})

	cookie := httptest.NewRequest(http.MethodGet, "/stream?token=q", nil)
	cookie.AddCookie(&http.Cookie{Name: SessionCookie, Value: "c"})

	query := httptest.NewRequest(http.MethodGet, "/stream?token=q", nil)
	basic := httptest.NewRequest(http.MethodGet, "/stream", nil)
	basic.Header.Set("Authorization", "Basic abc")

	assert.Equal(t, "h", TokenFromRequest(header))
	assert.Equal(t, "c", TokenFromRequest(cookie))
	assert.Equal(t, "q", TokenFromRequest(query))
	assert.Equal(t, "", TokenFromRequest(basic))
	assert.Equal(t, "", TokenFromRequest(nil))
}
