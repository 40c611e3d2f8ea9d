package handler

import (
	"LeadPulse/internal/modules/notification/application/dto/request"
	"LeadPulse/internal/modules/notification/application/service"
	"LeadPulse/pkg/back"
	"LeadPulse/pkg/xerr"
	"LeadPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReadStatusHandler struct {
	svc service.ReadStatusService
}

func NewReadStatusHandler(svc service.ReadStatusService) *ReadStatusHandler {
	return &ReadStatusHandler{svc: svc}
}

func (h *ReadStatusHandler) Lookup(c *gin.Context) {
	req, ok := bindIds(c)
	if !ok {
		return
	}
	data, err := h.svc.Lookup(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *ReadStatusHandler) Get(c *gin.Context) {
	data, err := h.svc.Get(c.Request.Context(), c.GetString("uuid"), c.Param("notificationId"))
	back.Result(c, data, err)
}

func (h *ReadStatusHandler) MarkRead(c *gin.Context) {
	data, err := h.svc.MarkRead(c.Request.Context(), c.GetString("uuid"), c.Param("notificationId"))
	back.Result(c, data, err)
}

func (h *ReadStatusHandler) BatchInsert(c *gin.Context) {
	req, ok := bindIds(c)
	if !ok {
		return
	}
	data, err := h.svc.BatchInsert(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *ReadStatusHandler) BatchUpdate(c *gin.Context) {
	req, ok := bindIds(c)
	if !ok {
		return
	}
	data, err := h.svc.BatchUpdate(c.Request.Context(), req)
	back.Result(c, data, err)
}

func (h *ReadStatusHandler) MarkAllRead(c *gin.Context) {
	req, ok := bindIds(c)
	if !ok {
		return
	}
	data, err := h.svc.MarkAllRead(c.Request.Context(), req)
	back.Result(c, data, err)
}

// bindIds 用户身份只取自 token，忽略请求体
func bindIds(c *gin.Context) (request.NotificationIdsRequest, bool) {
	var req request.NotificationIdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind notification ids failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return req, false
	}
	req.UserId = c.GetString("uuid")
	return req, true
}
