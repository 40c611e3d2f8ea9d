package event

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"LeadPulse/internal/modules/notification/application/dto/request"
	"LeadPulse/internal/modules/notification/application/service"
	"LeadPulse/internal/modules/notification/infrastructure/mq"
	"LeadPulse/pkg/xerr"
	"LeadPulse/pkg/zlog"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const DefaultDedupTTL = 10 * time.Minute

// LeadEventHandler 消费线索变更事件：落通知并推送，或仅推送（broadcast_only）
type LeadEventHandler struct {
	svc  service.NotificationService
	seen *cache.Cache
	ttl  time.Duration
}

func NewLeadEventHandler(svc service.NotificationService, dedupTTL time.Duration) *LeadEventHandler {
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &LeadEventHandler{
		svc:  svc,
		seen: cache.New(dedupTTL, 2*dedupTTL),
		ttl:  dedupTTL,
	}
}

var _ mq.Handler = (*LeadEventHandler)(nil)

// Handle 返回 error 的消息不提交，等待重投；格式错误的消息直接丢弃
func (h *LeadEventHandler) Handle(ctx context.Context, msg mq.Message) error {
	var ev request.LeadEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		zlog.Warn("drop malformed lead event", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}
	ev.WorkspaceId = strings.TrimSpace(ev.WorkspaceId)
	if ev.WorkspaceId == "" {
		zlog.Warn("drop lead event without workspace", zap.String("event_id", ev.EventId))
		return nil
	}

	// 至多处理一次：Add 在 key 已存在时返回错误
	key := strings.TrimSpace(ev.EventId)
	if key != "" {
		if err := h.seen.Add(key, struct{}{}, h.ttl); err != nil {
			zlog.Debug("skip redelivered lead event", zap.String("event_id", key))
			return nil
		}
	}

	err := h.process(ctx, ev)
	if err == nil {
		return nil
	}
	var ce *xerr.CodeError
	if errors.As(err, &ce) && ce.Code == xerr.BadRequest {
		zlog.Warn("drop invalid lead event", zap.String("event_id", key), zap.Error(err))
		return nil
	}
	if key != "" {
		h.seen.Delete(key)
	}
	return err
}

func (h *LeadEventHandler) process(ctx context.Context, ev request.LeadEvent) error {
	if ev.BroadcastOnly {
		payload, err := leadPayload(ev)
		if err != nil {
			return xerr.ErrParam
		}
		return h.svc.Publish(ctx, ev.WorkspaceId, payload)
	}
	_, err := h.svc.Create(ctx, ev.ToCreateRequest())
	return err
}

// leadPayload 推给客户端的原始事件，type 即线索操作类型
func leadPayload(ev request.LeadEvent) (json.RawMessage, error) {
	return json.Marshal(struct {
		Type        string          `json:"type"`
		EventId     string          `json:"event_id,omitempty"`
		WorkspaceId string          `json:"workspace_id"`
		LeadId      string          `json:"lead_id,omitempty"`
		UserId      string          `json:"user_id,omitempty"`
		Details     json.RawMessage `json:"details,omitempty"`
	}{
		Type:        ev.Action,
		EventId:     ev.EventId,
		WorkspaceId: ev.WorkspaceId,
		LeadId:      ev.LeadId,
		UserId:      ev.UserId,
		Details:     ev.Details,
	})
}
