package handler

import (
	"encoding/json"

	"LeadPulse/internal/modules/notification/application/dto/request"
	"LeadPulse/internal/modules/notification/application/service"
	"LeadPulse/pkg/back"
	"LeadPulse/pkg/xerr"
	"LeadPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// ListSnapshot 轮询接口，客户端定时拉取全量快照
func (h *NotificationHandler) ListSnapshot(c *gin.Context) {
	var req request.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		zlog.Warn("bind snapshot query failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	req.WorkspaceId = c.Param("workspaceId")
	data, err := h.svc.ListSnapshot(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	data, err := h.svc.Get(c.Request.Context(), c.Param("workspaceId"), c.Param("notificationId"))
	back.Result(c, data, err)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	var req request.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind notification failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	ws := c.Param("workspaceId")
	if req.WorkspaceId != "" && req.WorkspaceId != ws {
		back.Error(c, xerr.BadRequest, "workspace_id 不匹配")
		return
	}
	req.WorkspaceId = ws
	if req.UserId == "" {
		req.UserId = c.GetString("uuid")
	}
	data, err := h.svc.Create(c.Request.Context(), req)
	back.Result(c, data, err)
}

// PublishEvent 直接广播一条线索变更事件，不落库
func (h *NotificationHandler) PublishEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err = h.svc.Publish(c.Request.Context(), c.Param("workspaceId"), body)
	back.Result(c, nil, err)
}
