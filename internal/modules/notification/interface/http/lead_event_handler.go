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

type LeadEventHandler struct {
	svc service.LeadEventService
}

func NewLeadEventHandler(svc service.LeadEventService) *LeadEventHandler {
	return &LeadEventHandler{svc: svc}
}

type enqueueRespond struct {
	EventId string `json:"event_id"`
}

// Enqueue 线索事件入 Kafka，接口立即返回 event_id
func (h *LeadEventHandler) Enqueue(c *gin.Context) {
	var ev request.LeadEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		zlog.Warn("bind lead event failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	ev.WorkspaceId = c.Param("workspaceId")
	if ev.UserId == "" {
		ev.UserId = c.GetString("uuid")
	}
	id, err := h.svc.Enqueue(c.Request.Context(), ev)
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Success(c, enqueueRespond{EventId: id})
}
