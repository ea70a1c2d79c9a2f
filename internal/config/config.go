package config

import (
	"os"
	"strconv"

	"github.com/evsong/Evclaude-proxy/internal/model"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Auth     AuthConfig     `yaml:"auth"`
	Data     DataConfig     `yaml:"data"`
	Preset   PresetConfig   `yaml:"preset"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AdminConfig 管理后台 Basic Auth 凭证
type AdminConfig struct {
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// UpstreamConfig 上游 API 配置
type UpstreamConfig struct {
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`            // 出站凭证，替换客户端自带的 key
	TimeoutSeconds   int    `yaml:"timeout_seconds"`    // 长超时，适配慢速生成
	AnthropicVersion string `yaml:"anthropic_version"`
}

// AuthConfig 客户端密钥配置
type AuthConfig struct {
	SeedKeys []SeedKey `yaml:"seed_keys"` // keys.json 不存在时写入的初始密钥
}

// SeedKey 初始客户端密钥
type SeedKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// DataConfig 持久化配置
type DataConfig struct {
	Dir                 string `yaml:"dir"`
	DBPath              string `yaml:"db_path"`
	SaveDebounceSeconds int    `yaml:"save_debounce_seconds"`
	RetentionDays       int    `yaml:"retention_days"`
}

// PresetConfig 预设问答配置
type PresetConfig struct {
	Seed *model.PresetRule `yaml:"seed"` // presets.json 首次创建时写入的规则
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // 为空时只输出到 stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load 从文件加载配置，文件不存在时使用默认值，最后应用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	setDefaults(cfg)
	applyEnv(cfg)

	return cfg, nil
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Admin.User == "" {
		cfg.Admin.User = "admin"
	}
	if cfg.Admin.Pass == "" {
		cfg.Admin.Pass = "evclaude2024"
	}
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "https://open.bigmodel.cn/api/anthropic"
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 300
	}
	if cfg.Upstream.AnthropicVersion == "" {
		cfg.Upstream.AnthropicVersion = "2023-06-01"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "./data"
	}
	if cfg.Data.DBPath == "" {
		cfg.Data.DBPath = cfg.Data.Dir + "/requests.db"
	}
	if cfg.Data.SaveDebounceSeconds == 0 {
		cfg.Data.SaveDebounceSeconds = 5
	}
	if cfg.Data.RetentionDays == 0 {
		cfg.Data.RetentionDays = 30
	}
	if cfg.Preset.Seed == nil {
		cfg.Preset.Seed = &model.PresetRule{
			Keywords:   []string{"你好", "自我介绍"},
			MatchCount: 2,
			Response:   "你好，我是 Evclaude 代理内置的预设回复。",
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
}

// applyEnv 环境变量覆盖（凭证类配置优先从环境读取）
func applyEnv(cfg *Config) {
	if v := os.Getenv("ADMIN_USER"); v != "" {
		cfg.Admin.User = v
	}
	if v := os.Getenv("ADMIN_PASS"); v != "" {
		cfg.Admin.Pass = v
	}
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("EVCLAUDE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Save 保存配置到文件
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
