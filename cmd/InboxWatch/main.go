package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"LeadPulse/pkg/inbox"
	"LeadPulse/pkg/zlog"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// watchConfig 命令行参数优先，其次 LEADPULSE_* 环境变量，最后是默认值
type watchConfig struct {
	BaseURL   string
	Token     string
	Workspace string
	Viewer    string
	Transport string
	Poll      time.Duration
	MarkAll   bool
	LogLevel  string
}

func loadConfig(args []string) (*watchConfig, error) {
	fs := pflag.NewFlagSet("inboxwatch", pflag.ContinueOnError)
	fs.String("base-url", "http://127.0.0.1:8000", "LeadPulse base URL")
	fs.String("token", "", "bearer token")
	fs.String("workspace", "", "workspace ID")
	fs.String("viewer", "", "current user id, used to pre-mark own notifications as read")
	fs.String("transport", "sse", "push transport: sse, ws or none")
	fs.Duration("poll", inbox.DefaultPollInterval, "snapshot poll interval")
	fs.Bool("mark-all", false, "mark every notification read once read status is reconciled and exit")
	fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("LEADPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("poll", "LEADPULSE_POLL_INTERVAL"); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	cfg := &watchConfig{
		BaseURL:   strings.TrimSpace(v.GetString("base-url")),
		Token:     strings.TrimSpace(v.GetString("token")),
		Workspace: strings.TrimSpace(v.GetString("workspace")),
		Viewer:    strings.TrimSpace(v.GetString("viewer")),
		Transport: strings.TrimSpace(v.GetString("transport")),
		Poll:      v.GetDuration("poll"),
		MarkAll:   v.GetBool("mark-all"),
		LogLevel:  v.GetString("log-level"),
	}
	switch {
	case cfg.Token == "":
		return nil, errors.New("token is required (--token or LEADPULSE_TOKEN)")
	case cfg.Workspace == "":
		return nil, errors.New("workspace is required (--workspace or LEADPULSE_WORKSPACE)")
	case cfg.Poll <= 0:
		return nil, fmt.Errorf("invalid poll interval %q", v.GetString("poll"))
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}

	zlog.Init("", cfg.LogLevel)
	defer zlog.Sync()

	sub, err := newSubscriber(cfg.Transport, cfg.BaseURL, cfg.Token)
	if err != nil {
		zlog.Fatal("invalid transport", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lastUnread := -1
	store, err := inbox.New(cfg.Workspace,
		inbox.NewHTTPRemote(cfg.BaseURL, cfg.Token),
		sub,
		inbox.WithViewer(cfg.Viewer),
		inbox.WithPollInterval(cfg.Poll),
		inbox.WithLogger(zlog.L()),
		inbox.WithOnChange(func(v inbox.View) {
			if v.Unread != lastUnread {
				lastUnread = v.Unread
				zlog.Info("inbox changed", zap.Int("total", len(v.Records)), zap.Int("unread", v.Unread))
			}
		}),
		inbox.WithOnEvent(func(ev inbox.Event) {
			zlog.Debug("stream event", zap.String("type", ev.Type))
		}),
	)
	if err != nil {
		zlog.Fatal("failed to start inbox", zap.Error(err))
	}
	defer store.Close()

	if cfg.MarkAll {
		if err := markAll(ctx, store); err != nil {
			zlog.Error("mark all read failed", zap.Error(err))
			return
		}
		zlog.Info("marked all read", zap.Int("unread", store.Unread()))
		return
	}

	<-ctx.Done()
	zlog.Info("inbox watch stopping")
}

// markAll 等已读状态校正完成再批量标记，避免基于到达推断值工作
func markAll(ctx context.Context, store *inbox.Store) error {
	select {
	case <-store.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	return store.MarkAllRead(ctx)
}

func newSubscriber(transport, baseURL, token string) (inbox.Subscriber, error) {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", "sse":
		return inbox.NewSSESubscriber(baseURL, token, &http.Client{}, zlog.L()), nil
	case "ws", "websocket":
		return inbox.NewWSSubscriber(baseURL, token, zlog.L()), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
