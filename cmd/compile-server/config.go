package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"codejudge/internal/judge/sandbox/compiler"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8081"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultTempDir         = "./temp"
	defaultOutputMaxBytes  = 4 << 20
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// SandboxConfig holds workspace and execution settings.
type SandboxConfig struct {
	TempDir          string        `yaml:"tempDir"`
	HelperPath       string        `yaml:"helperPath"`
	OutputMaxBytes   int64         `yaml:"outputMaxBytes"`
	CompileCommand   string        `yaml:"compileCommand"`
	CompileTimeout   time.Duration `yaml:"compileTimeout"`
	TimeLimitSignals []string      `yaml:"timeLimitSignals"`
}

// WorkerConfig holds concurrency settings.
type WorkerConfig struct {
	MaxConcurrent int           `yaml:"maxConcurrent"`
	SlotTimeout   time.Duration `yaml:"slotTimeout"`
}

// AppConfig holds compile-server config.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Worker  WorkerConfig  `yaml:"worker"`
}

func (c SandboxConfig) compilerConfig() compiler.Config {
	return compiler.Config{Command: c.CompileCommand, Timeout: c.CompileTimeout}
}

func (c SandboxConfig) runnerConfig() runner.Config {
	return runner.Config{HelperPath: c.HelperPath, TimeLimitSignals: c.TimeLimitSignals}
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

// loadAppConfig reads path and applies defaults. A positive port overrides
// the port of server.addr.
func loadAppConfig(path string, port int) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg, port); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig, port int) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if port > 0 {
		if port > 65535 {
			return fmt.Errorf("invalid port %d", port)
		}
		host, _, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("invalid server addr %q: %w", cfg.Server.Addr, err)
		}
		cfg.Server.Addr = net.JoinHostPort(host, strconv.Itoa(port))
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
	if cfg.Sandbox.TempDir == "" {
		cfg.Sandbox.TempDir = defaultTempDir
	}
	if cfg.Sandbox.OutputMaxBytes <= 0 {
		cfg.Sandbox.OutputMaxBytes = defaultOutputMaxBytes
	}
	if cfg.Sandbox.CompileCommand == "" {
		cfg.Sandbox.CompileCommand = compiler.DefaultCommand
	}
	if cfg.Sandbox.CompileTimeout <= 0 {
		cfg.Sandbox.CompileTimeout = compiler.DefaultTimeout
	}
	if cfg.Worker.MaxConcurrent < 0 {
		return fmt.Errorf("worker.maxConcurrent must not be negative")
	}
	return nil
}
