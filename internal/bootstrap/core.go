package bootstrap

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuqie6/MirrorQuest/internal/eventbus"
	"github.com/yuqie6/MirrorQuest/internal/pkg/config"
	"github.com/yuqie6/MirrorQuest/internal/repository"
	"github.com/yuqie6/MirrorQuest/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	Hub       *eventbus.Hub
	LogCloser io.Closer

	Repos struct {
		KV        *repository.KVRepository
		RewardLog *repository.RewardLogRepository
	}

	Services struct {
		Rewards *service.RewardService
	}
}

// NewCore 构建核心依赖（加载配置、初始化日志与数据库）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, err := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})
	if err != nil {
		return nil, err
	}

	c, err := NewCoreFromConfig(cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	c.LogCloser = logCloser
	return c, nil
}

// NewCoreFromConfig 基于已加载的配置构建核心依赖（不改动全局 logger）
func NewCoreFromConfig(cfg *config.Config) (*Core, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.KV = repository.NewKVRepository(db.DB)
	c.Repos.RewardLog = repository.NewRewardLogRepository(db.DB)

	// Services
	c.Services.Rewards = service.NewRewardService(
		c.Repos.KV,
		c.Repos.RewardLog,
		c.Hub,
		LoadRules(cfg.Rewards.RulesPath),
		&service.RewardServiceConfig{
			ProfileKey: cfg.Storage.ProfileKey,
			Location:   loc,
		},
	)

	return c, nil
}

// LoadRules 读取规则文件；未配置/不存在/非法时回退内置规则，启动不因规则失败
func LoadRules(path string) service.RewardRules {
	if path == "" {
		return service.DefaultRewardRules()
	}
	rules, err := service.LoadRulesFile(path)
	if err == nil {
		slog.Info("加载奖励规则", "path", path)
		return rules
	}
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("规则文件不存在，使用内置规则", "path", path)
	} else {
		slog.Warn("规则文件无效，使用内置规则", "path", path, "error", err)
	}
	return service.DefaultRewardRules()
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}
