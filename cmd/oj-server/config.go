package main

import (
	"fmt"
	"os"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	"codejudge/internal/common/mq"
	"codejudge/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultQuestionsDir    = "./questions"
	defaultQuestionsTable  = "questions"
	defaultMachineConf     = "./conf/service_machine.conf"
	defaultCacheTTL        = 10 * time.Minute
	defaultJudgeTopic      = "codejudge.judge.events"
	defaultEventTimeout    = 2 * time.Second
	defaultTimeoutFactor   = 3

	backendFile  = "file"
	backendMySQL = "mysql"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// QuestionsConfig selects the catalogue backend.
type QuestionsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Table   string `yaml:"table"`
}

// CacheConfig enables the Redis read-through cache when Redis.Addr is set.
type CacheConfig struct {
	Redis cache.RedisConfig `yaml:"redis"`
	TTL   time.Duration     `yaml:"ttl"`
}

// EventsConfig configures judge event publishing. Empty brokers disable it.
type EventsConfig struct {
	Kafka   mq.KafkaConfig `yaml:"kafka"`
	Topic   string         `yaml:"topic"`
	Timeout time.Duration  `yaml:"timeout"`
}

// JudgeConfig holds dispatch settings.
type JudgeConfig struct {
	MachineConf        string `yaml:"machineConf"`
	GlobalPreamblePath string `yaml:"globalPreamblePath"`
	TimeoutFactor      int    `yaml:"timeoutFactor"`
}

// AppConfig holds oj-server config.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Questions QuestionsConfig `yaml:"questions"`
	Database  db.MySQLConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Judge     JudgeConfig     `yaml:"judge"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	switch cfg.Questions.Backend {
	case "", backendFile:
		cfg.Questions.Backend = backendFile
		if cfg.Questions.Dir == "" {
			cfg.Questions.Dir = defaultQuestionsDir
		}
	case backendMySQL:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the mysql question backend")
		}
		if cfg.Questions.Table == "" {
			cfg.Questions.Table = defaultQuestionsTable
		}
	default:
		return fmt.Errorf("unknown question backend %q", cfg.Questions.Backend)
	}

	if cfg.Cache.Redis.Addr != "" && cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	if cfg.Events.Kafka.Enabled() {
		if cfg.Events.Topic == "" {
			cfg.Events.Topic = defaultJudgeTopic
		}
		if cfg.Events.Timeout <= 0 {
			cfg.Events.Timeout = defaultEventTimeout
		}
	}

	if cfg.Judge.MachineConf == "" {
		cfg.Judge.MachineConf = defaultMachineConf
	}
	if cfg.Judge.TimeoutFactor < 0 {
		return fmt.Errorf("judge.timeoutFactor must not be negative")
	}
	if cfg.Judge.TimeoutFactor == 0 {
		cfg.Judge.TimeoutFactor = defaultTimeoutFactor
	}
	return nil
}

// loadGlobalPreamble reads the text prepended to every submission. An
// empty path means no preamble.
func loadGlobalPreamble(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read global preamble: %w", err)
	}
	return string(data), nil
}
