package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvPrefix = "LEAVEMASTER_"

var (
	SessionBackends = []string{"file", "redis", "memory"}
	BackoffModes    = []string{"fixed", "exponential"}
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Log         struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"text"`
	} `envPrefix:"LOG_"`
	API struct {
		BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080/api"`
		Timeout int    `env:"TIMEOUT" envDefault:"10"`
	} `envPrefix:"API_"`
	Push struct {
		URL               string `env:"URL" envDefault:"ws://localhost:8080/ws"`
		ReconnectDelay    int    `env:"RECONNECT_DELAY" envDefault:"3"`
		Backoff           string `env:"BACKOFF" envDefault:"fixed"`
		MaxReconnectDelay int    `env:"MAX_RECONNECT_DELAY" envDefault:"60"`
	} `envPrefix:"PUSH_"`
	Notification struct {
		Capacity       int `env:"CAPACITY" envDefault:"10"`
		DisplayTimeout int `env:"DISPLAY_TIMEOUT" envDefault:"10"`
	} `envPrefix:"NOTIFICATION_"`
	Session struct {
		Backend   string `env:"BACKEND" envDefault:"file"`
		FilePath  string `env:"FILE_PATH"`
		KeyPrefix string `env:"KEY_PREFIX" envDefault:"leavemaster:session:"`
	} `envPrefix:"SESSION_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		DB               int    `env:"DB" envDefault:"0"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REDIS_"`
	DevServer struct {
		Port            string `env:"PORT" envDefault:"8080"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		SeedPassword    string `env:"SEED_PASSWORD" envDefault:"password"`
		RandomEmployees int    `env:"RANDOM_EMPLOYEES" envDefault:"8"`
		JWT             struct {
			Secret     string `env:"SECRET" envDefault:"leavemaster-dev-secret"`
			Expiration int    `env:"EXPIRATION" envDefault:"24"` // 小时
		} `envPrefix:"JWT_"`
	} `envPrefix:"DEV_SERVER_"`
}

// LoadEnv 加载存在的 .env 文件，不存在的文件直接跳过
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func LoadConfig() (*Config, error) {
	if _, err := LoadEnv(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok && len(aggErr.Errors) > 0 {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %d", c.API.Timeout)
	}
	if c.Push.ReconnectDelay <= 0 {
		return fmt.Errorf("PUSH_RECONNECT_DELAY must be positive, got %d", c.Push.ReconnectDelay)
	}
	if !slices.Contains(BackoffModes, c.Push.Backoff) {
		return fmt.Errorf("PUSH_BACKOFF must be one of %v, got %q", BackoffModes, c.Push.Backoff)
	}
	if c.Push.MaxReconnectDelay < c.Push.ReconnectDelay {
		return fmt.Errorf("PUSH_MAX_RECONNECT_DELAY (%d) must not be smaller than PUSH_RECONNECT_DELAY (%d)", c.Push.MaxReconnectDelay, c.Push.ReconnectDelay)
	}
	if c.Notification.Capacity <= 0 {
		return fmt.Errorf("NOTIFICATION_CAPACITY must be positive, got %d", c.Notification.Capacity)
	}
	if c.Notification.DisplayTimeout <= 0 {
		return fmt.Errorf("NOTIFICATION_DISPLAY_TIMEOUT must be positive, got %d", c.Notification.DisplayTimeout)
	}
	if !slices.Contains(SessionBackends, c.Session.Backend) {
		return fmt.Errorf("SESSION_BACKEND must be one of %v, got %q", SessionBackends, c.Session.Backend)
	}
	return nil
}

// SessionFilePath 未配置时落在用户配置目录下
func (c *Config) SessionFilePath() (string, error) {
	if c.Session.FilePath != "" {
		return c.Session.FilePath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "leavemaster", "session.json"), nil
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Push.ReconnectDelay) * time.Second
}

func (c *Config) MaxReconnectDelay() time.Duration {
	return time.Duration(c.Push.MaxReconnectDelay) * time.Second
}

func (c *Config) DisplayTimeout() time.Duration {
	return time.Duration(c.Notification.DisplayTimeout) * time.Second
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) RedisOperationTimeout() time.Duration {
	return time.Duration(c.Redis.OperationTimeout) * time.Second
}

// Default 返回全部取默认值的配置，测试中使用
func Default() *Config {
	cfg := &Config{}
	// 默认值全部来自 envDefault，不依赖环境变量
	_ = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}})
	return cfg
}
