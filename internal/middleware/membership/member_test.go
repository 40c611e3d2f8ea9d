package membership

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type checkerFunc func(ctx context.Context, ws, user string) (bool, error)

func (f checkerFunc) IsActiveMember(ctx context.Context, ws, user string) (bool, error) {
	return f(ctx, ws, user)
}

func TestRequireMember(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checker := checkerFunc(func(_ context.Context, ws, user string) (bool, error) {
		if ws == "broken" {
			return false, errors.New("db down")
		}
		return ws == "W1" && user == "U1", nil
	})

	testCases := []struct {
		name string
		user string
		ws   string
		want int
	}{
		{name: "member", user: "U1", ws: "W1", want: http.StatusOK},
		{name: "outsider", user: "U2", ws: "W1", want: http.StatusForbidden},
		{name: "anonymous", ws: "W1", want: http.StatusForbidden},
		{name: "lookup error", user: "U1", ws: "broken", want: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tc.user != "" {
					c.Set("uuid", tc.user)
				}
			})
			r.GET("/workspaces/:workspaceId/x", RequireMember(checker), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/"+tc.ws+"/x", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
