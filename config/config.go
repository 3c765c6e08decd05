// Package config loads operator settings for the weaveflow CLI: logging,
// trace output, approval behavior and tool-call limits. Bundle content never
// comes from here; bundles are compiled artifacts loaded through the ir
// package.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/weaveflow/weaveflow/logging"
)

// Approval modes accepted in configuration and on the command line.
const (
	ApprovalAuto        = "auto"
	ApprovalReject      = "reject"
	ApprovalInteractive = "interactive"
)

// Config holds the runtime settings shared by the CLI commands.
type Config struct {
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	TraceDir     string        `mapstructure:"trace_dir"`
	ApprovalMode string        `mapstructure:"approval_mode"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
}

// DefaultConfig returns the settings used when nothing is configured. Text
// logs suit a terminal; traces are only written when asked for.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		TraceDir:     "",
		ApprovalMode: ApprovalInteractive,
		CallTimeout:  60 * time.Second,
	}
}

// Load reads configuration from weaveflow.yaml in the working directory or
// ~/.weaveflow/, layered under WEAVEFLOW_* environment variables. A missing
// config file is not an error. A non-empty path pins the config file
// explicitly, and then it must exist.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("weaveflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.weaveflow/")
	}

	viper.SetEnvPrefix("WEAVEFLOW")
	viper.AutomaticEnv()

	viper.SetDefault("log_level", config.LogLevel)
	viper.SetDefault("log_format", config.LogFormat)
	viper.SetDefault("trace_dir", config.TraceDir)
	viper.SetDefault("approval_mode", config.ApprovalMode)
	viper.SetDefault("call_timeout", config.CallTimeout)

	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || path != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func validate(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format: %s", config.LogFormat)
	}

	validApprovalModes := map[string]bool{
		ApprovalAuto: true, ApprovalReject: true, ApprovalInteractive: true,
	}
	if !validApprovalModes[config.ApprovalMode] {
		return fmt.Errorf("invalid approval mode: %s", config.ApprovalMode)
	}

	if config.CallTimeout < 0 {
		return fmt.Errorf("the call timeout cannot be negative")
	}

	return nil
}

// Logger builds the configured logger. Logs go to stderr so workflow results
// on stdout stay machine-readable.
func (c *Config) Logger() *logging.WeaveFlowLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(c.LogLevel),
		Format: c.LogFormat,
		Output: os.Stderr,
	})
}
