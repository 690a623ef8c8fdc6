// Package config provides configuration types and loading for wadash.
package config

import (
	"os"
	"path/filepath"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Server, Kafka, Slack.
type Config struct {
	Paths  PathsConfig  `json:"paths"`
	Server ServerConfig `json:"server"`
	Kafka  KafkaConfig  `json:"kafka"`
	Slack  SlackConfig  `json:"slack"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir    string `json:"dataDir" envconfig:"DATA_DIR"`
	SessionDir string `json:"sessionDir" envconfig:"SESSION_DIR"`
}

// ServerConfig configures the dashboard-facing HTTP API.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr" envconfig:"LISTEN_ADDR"`
}

// KafkaConfig configures the optional log-entry mirror.
// When enabled, every broadcast log entry is also written to the topic,
// keyed by tenant id.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// SlackConfig configures operator alerts.
type SlackConfig struct {
	Enabled bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	Token   string `json:"token" envconfig:"SLACK_TOKEN"`
	Channel string `json:"channel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns sensible defaults rooted under ~/.wadash.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".wadash")
	return Config{
		Paths: PathsConfig{
			DataDir:    base,
			SessionDir: filepath.Join(base, "sessions"),
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8180",
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: "localhost:9092",
			Topic:   "wadash.botlog",
		},
		Slack: SlackConfig{
			Enabled: false,
		},
	}
}
