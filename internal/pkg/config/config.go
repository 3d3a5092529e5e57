package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Rewards RewardsConfig `mapstructure:"rewards"`
	Server  ServerConfig  `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	ProfileKey string `mapstructure:"profile_key"`
}

// RewardsConfig 奖励规则配置
type RewardsConfig struct {
	RulesPath  string `mapstructure:"rules_path"`  // 可选 YAML 规则文件，空则使用内置规则
	WatchRules bool   `mapstructure:"watch_rules"` // 规则文件变更时热加载
	Timezone   string `mapstructure:"timezone"`    // 连续天数的日历时区，空/Local 为系统时区
}

// ServerConfig 本地 HTTP API 配置
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("QUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	cfg.Rewards.RulesPath = resolvePath(cfg.Rewards.RulesPath)
	cfg.App.LogPath = resolvePath(cfg.App.LogPath)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default 默认配置（用于生成初始配置文件）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "quest-agent")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")

	// Storage
	v.SetDefault("storage.db_path", "./data/quest.db")
	v.SetDefault("storage.profile_key", "reward_profile")

	// Rewards
	v.SetDefault("rewards.rules_path", "")
	v.SetDefault("rewards.watch_rules", true)
	v.SetDefault("rewards.timezone", "Local")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:0")
}

// Location 解析连续天数使用的时区
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Rewards.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("解析时区失败 %q: %w", tz, err)
	}
	return loc, nil
}

// resolvePath 解析相对路径为绝对路径（相对于可执行文件目录）
func resolvePath(path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 为空时输出到 stdout
	Component string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel 解析日志级别，未知值回退 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger 设置默认 logger，返回的 Closer 负责关闭日志文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w, closer = f, f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}
