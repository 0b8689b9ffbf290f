package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jaam8/messenger_poll_bot/internal/mattermost"
	"github.com/jaam8/messenger_poll_bot/internal/messenger"
	"github.com/jaam8/messenger_poll_bot/pkg/mongodb"
	"github.com/jaam8/messenger_poll_bot/pkg/tarantool"
	"github.com/joho/godotenv"
)

const (
	PlatformMessenger  = "messenger"
	PlatformMattermost = "mattermost"

	StorageTarantool = "tarantool"
	StorageMongo     = "mongo"
	StorageMemory    = "memory"
)

type Config struct {
	RestPort         string            `yaml:"REST_PORT"         env:"REST_PORT"         env-default:"8000"`
	LogLevel         string            `yaml:"LOG_LEVEL"         env:"LOG_LEVEL"         env-default:"info"`
	Platform         string            `yaml:"PLATFORM"          env:"PLATFORM"          env-default:"messenger"`
	Storage          string            `yaml:"STORAGE"           env:"STORAGE"           env-default:"tarantool"`
	OperatorID       string            `yaml:"OPERATOR_ID"       env:"OPERATOR_ID"       env-required:"true"`
	ContactURL       string            `yaml:"CONTACT_URL"       env:"CONTACT_URL"`
	PollLifetime     time.Duration     `yaml:"POLL_LIFETIME"     env:"POLL_LIFETIME"     env-default:"24h"`
	BroadcastWorkers int               `yaml:"BROADCAST_WORKERS" env:"BROADCAST_WORKERS" env-default:"8"`
	Messenger        messenger.Config  `yaml:"MESSENGER"`
	Mattermost       mattermost.Config `yaml:"MATTERMOST"`
	Tarantool        tarantool.Config  `yaml:"TARANTOOL"`
	Mongo            mongodb.Config    `yaml:"MONGODB"`
}

func New() (*Config, error) {
	// a missing .env is fine, the environment may already carry everything
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformMessenger:
		if c.Messenger.AccessToken == "" {
			return errors.New("config: ACCESS_TOKEN is required for messenger")
		}
		if c.Messenger.VerifyToken == "" {
			return errors.New("config: VERIFY_TOKEN is required for messenger")
		}
		if c.Messenger.AppSecret == "" {
			return errors.New("config: MESSENGER_APP_SECRET is required for messenger")
		}
	case PlatformMattermost:
		if c.Mattermost.URL == "" || c.Mattermost.WsURL == "" || c.Mattermost.BotToken == "" {
			return errors.New("config: MM_URL, MM_WS_URL and BOT_TOKEN are required for mattermost")
		}
		if c.Mattermost.ActionURL == "" {
			return errors.New("config: MM_ACTION_URL is required for mattermost")
		}
		if c.Mattermost.ActionSecret == "" {
			return errors.New("config: MM_ACTION_SECRET is required for mattermost")
		}
	default:
		return fmt.Errorf("config: unknown PLATFORM %q", c.Platform)
	}

	switch c.Storage {
	case StorageTarantool, StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE %q", c.Storage)
	}

	if c.PollLifetime <= 0 {
		return errors.New("config: POLL_LIFETIME must be positive")
	}
	if c.BroadcastWorkers < 1 {
		return errors.New("config: BROADCAST_WORKERS must be at least 1")
	}
	return nil
}
