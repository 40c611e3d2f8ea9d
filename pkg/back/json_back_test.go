package back

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"LeadPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		data     any
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "success", data: map[string]int{"n": 1}, wantCode: xerr.OK, wantMsg: "Success"},
		{name: "code error", err: xerr.New(xerr.Forbidden, "nope"), wantCode: xerr.Forbidden, wantMsg: "nope"},
		{name: "plain error hidden", err: errors.New("db down"), wantCode: xerr.InternalServerError, wantMsg: xerr.ErrServerError.Message},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Result(c, tc.data, tc.err)

			assert.Equal(t, http.StatusOK, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode, resp.Code)
			assert.Equal(t, tc.wantMsg, resp.Message)
		})
	}
}

func TestCodeErrorIs(t *testing.T) {
	err := xerr.New(xerr.NotFound, "read status not found")
	assert.ErrorIs(t, err, xerr.ErrNotFound)
	assert.NotErrorIs(t, err, xerr.ErrForbidden)
}
