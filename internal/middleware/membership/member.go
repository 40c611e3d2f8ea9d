package membership

import (
	"context"
	"net/http"

	"LeadPulse/pkg/back"
	"LeadPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MemberChecker interface {
	IsActiveMember(ctx context.Context, workspaceID, userID string) (bool, error)
}

// RequireMember 校验 :workspaceId 路由的调用者是该 workspace 的有效成员，需放在 jwt.Auth 之后
func RequireMember(checker MemberChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := c.Param("workspaceId")
		uid := c.GetString("uuid")
		if ws == "" || uid == "" {
			back.Abort(c, http.StatusForbidden, "forbidden")
			return
		}
		ok, err := checker.IsActiveMember(c.Request.Context(), ws, uid)
		if err != nil {
			zlog.Error("check workspace membership failed", zap.String("workspace_id", ws), zap.Error(err))
			back.Abort(c, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			back.Abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}
