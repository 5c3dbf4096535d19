package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "U12345" and 12345.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Slack     SlackConfig      `json:"slack"`
	Executors []ExecutorConfig `json:"executors"`
	Runner    RunnerConfig     `json:"runner"`
	Logging   LoggingConfig    `json:"logging"`
}

type SlackConfig struct {
	BotToken  string              `json:"bot_token" env:"CHATEXEC_SLACK_BOT_TOKEN"`
	AppToken  string              `json:"app_token" env:"CHATEXEC_SLACK_APP_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CHATEXEC_SLACK_ALLOW_FROM"`
}

// ExecutorConfig is one named command template. The template carries a
// single {{payload}} placeholder; quoting inside the template is the
// template author's responsibility.
type ExecutorConfig struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

type RunnerConfig struct {
	Workers int `json:"workers" env:"CHATEXEC_RUNNER_WORKERS"`
}

type LoggingConfig struct {
	FileEnabled     bool   `json:"file_enabled" env:"CHATEXEC_LOGGING_FILE_ENABLED"`
	FilePath        string `json:"file_path" env:"CHATEXEC_LOGGING_FILE_PATH"`
	RotationEnabled bool   `json:"rotation_enabled" env:"CHATEXEC_LOGGING_ROTATION_ENABLED"`
	MaxAgeDays      int    `json:"max_age_days" env:"CHATEXEC_LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB       int    `json:"max_size_mb" env:"CHATEXEC_LOGGING_MAX_SIZE_MB"`
}

func DefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			BotToken:  "",
			AppToken:  "",
			AllowFrom: FlexibleStringSlice{},
		},
		Executors: []ExecutorConfig{},
		Runner: RunnerConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			FileEnabled:     true,
			FilePath:        "~/.chatexec/chatexec.log",
			RotationEnabled: true,
			MaxAgeDays:      7,
			MaxSizeMB:       50,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	resolveTokenEnvRefs(cfg)

	return cfg, nil
}

// resolveTokenEnvRefs lets slack tokens reference environment variables
// ("$SLACK_APP_TOKEN" or "${SLACK_APP_TOKEN}") instead of embedding
// secrets in the config file.
func resolveTokenEnvRefs(cfg *Config) {
	cfg.Slack.BotToken = resolveEnvRef(cfg.Slack.BotToken)
	cfg.Slack.AppToken = resolveEnvRef(cfg.Slack.AppToken)
}

func resolveEnvRef(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return v
	}
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		key := strings.TrimSpace(s[2 : len(s)-1])
		if key == "" {
			return v
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return v
	}
	if strings.HasPrefix(s, "$") && len(s) > 1 {
		key := strings.TrimSpace(s[1:])
		if key == "" {
			return v
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
	}
	return v
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LogFilePath returns the logging file path with ~ expanded.
func (c *Config) LogFilePath() string {
	return expandHome(c.Logging.FilePath)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
