package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"LeadPulse/pkg/redis"
	"LeadPulse/pkg/stream"
	"LeadPulse/pkg/zlog"

	"go.uber.org/zap"
)

var ErrInvalidEnvelope = errors.New("relay: invalid envelope")

// Envelope 跨实例广播的消息体
type Envelope struct {
	WorkspaceID string          `json:"workspace_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Fanout 本机投递，由 stream.Registry 实现
type Fanout interface {
	Fanout(workspaceID string, payload []byte) int
}

// Relay 多实例部署时，广播先发布到 Redis 频道，每个实例订阅后向本机连接扇出
type Relay struct {
	channel string
}

var _ stream.Publisher = (*Relay)(nil)

func New(channel string) *Relay {
	return &Relay{channel: channel}
}

func (r *Relay) Publish(ctx context.Context, workspaceID string, payload []byte) error {
	msg, err := Encode(workspaceID, payload)
	if err != nil {
		return err
	}
	_, err = redis.Publish(ctx, r.channel, msg)
	return err
}

// Run 阻塞订阅直到 ctx 取消
func (r *Relay) Run(ctx context.Context, fan Fanout) error {
	ps, err := redis.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer ps.Close()
	zlog.Info("broadcast relay subscribed", zap.String("channel", r.channel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := Decode([]byte(m.Payload))
			if err != nil {
				zlog.Warn("drop relay message", zap.Error(err))
				continue
			}
			fan.Fanout(env.WorkspaceID, env.Payload)
		}
	}
}

func Encode(workspaceID string, payload []byte) ([]byte, error) {
	if strings.TrimSpace(workspaceID) == "" || !json.Valid(payload) {
		return nil, ErrInvalidEnvelope
	}
	return json.Marshal(Envelope{WorkspaceID: workspaceID, Payload: payload})
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	if env.WorkspaceID == "" || len(env.Payload) == 0 {
		return Envelope{}, ErrInvalidEnvelope
	}
	return env, nil
}
