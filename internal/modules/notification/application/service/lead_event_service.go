package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"LeadPulse/internal/modules/notification/application/dto/request"
	"LeadPulse/internal/modules/notification/infrastructure/mq"
	"LeadPulse/pkg/util"
	"LeadPulse/pkg/xerr"
	"LeadPulse/pkg/zlog"

	"go.uber.org/zap"
)

// LeadEventService 把 HTTP 投递的线索事件写入 Kafka，由 LeadEventHandler 异步消费
type LeadEventService interface {
	Enqueue(ctx context.Context, ev request.LeadEvent) (string, error)
}

type leadEventServiceImpl struct {
	pub   mq.Publisher
	topic string
}

func NewLeadEventService(pub mq.Publisher, topic string) LeadEventService {
	return &leadEventServiceImpl{pub: pub, topic: topic}
}

func (s *leadEventServiceImpl) Enqueue(ctx context.Context, ev request.LeadEvent) (string, error) {
	ev.WorkspaceId = strings.TrimSpace(ev.WorkspaceId)
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.WorkspaceId == "" || ev.Action == "" {
		return "", xerr.ErrParam
	}
	if strings.TrimSpace(ev.EventId) == "" {
		ev.EventId = util.GenerateUUID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return "", xerr.ErrParam
	}
	_, err = s.pub.Publish(ctx, mq.Message{
		Topic: s.topic,
		Key:   []byte(ev.WorkspaceId),
		Value: value,
		Headers: map[string]string{
			"event_id": ev.EventId,
		},
	})
	if err != nil {
		zlog.Error("enqueue lead event failed", zap.String("event_id", ev.EventId), zap.Error(err))
		return "", xerr.ErrServerError
	}
	return ev.EventId, nil
}
