package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultConfigPath = "configs/config_local.toml"

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	TLS     bool   `toml:"tls"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
	Level   string `toml:"level"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	LeadTopic       string   `toml:"leadTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

// RealtimeConfig 推送通道相关参数
type RealtimeConfig struct {
	HeartbeatSeconds     int    `toml:"heartbeatSeconds"`
	BroadcastAttempts    int    `toml:"broadcastAttempts"`
	BroadcastRetryMillis int    `toml:"broadcastRetryMillis"`
	SendBuffer           int    `toml:"sendBuffer"`
	RelayChannel         string `toml:"relayChannel"`
	DedupTTLSeconds      int    `toml:"dedupTTLSeconds"`
}

func (c RealtimeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c RealtimeConfig) BroadcastRetryDelay() time.Duration {
	return time.Duration(c.BroadcastRetryMillis) * time.Millisecond
}

func (c RealtimeConfig) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

type Config struct {
	MainConfig     `toml:"mainConfig"`
	MysqlConfig    `toml:"mysqlConfig"`
	JwtConfig      `toml:"jwtConfig"`
	KafkaConfig    `toml:"kafkaConfig"`
	LogConfig      `toml:"logConfig"`
	RedisConfig    `toml:"redisConfig"`
	RealtimeConfig `toml:"realtimeConfig"`
}

var config *Config

// Defaults 补齐未配置的字段
func (c *Config) Defaults() {
	if c.AppName == "" {
		c.AppName = "leadpulse"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
	if c.BroadcastAttempts <= 0 {
		c.BroadcastAttempts = 3
	}
	if c.BroadcastRetryMillis <= 0 {
		c.BroadcastRetryMillis = 1000
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if strings.TrimSpace(c.RelayChannel) == "" {
		c.RelayChannel = "leadpulse:broadcast"
	}
	if c.DedupTTLSeconds <= 0 {
		c.DedupTTLSeconds = 600
	}
	if strings.TrimSpace(c.LeadTopic) == "" {
		c.LeadTopic = "crm.lead-events"
	}
	if strings.TrimSpace(c.ConsumerGroupID) == "" {
		c.ConsumerGroupID = "leadpulse-notifier"
	}
}

func LoadConfig(path string) (*Config, error) {
	conf := new(Config)
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, err
	}
	conf.Defaults()
	return conf, nil
}

func GetConfig() *Config {
	if config == nil {
		path := strings.TrimSpace(os.Getenv("LEADPULSE_CONFIG"))
		if path == "" {
			path = defaultConfigPath
		}
		conf, err := LoadConfig(path)
		if err != nil {
			log.Printf("failed to load config %s: %v, falling back to defaults", path, err)
			conf = new(Config)
			conf.Defaults()
		}
		config = conf
	}
	return config
}
