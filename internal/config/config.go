package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/validator"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Log             Log           `yaml:"log"`
	TCP             TCP           `yaml:"tcp"`
	HTTP            HTTP          `yaml:"http"`
	Game            Game          `yaml:"game"`
	Redis           Redis         `yaml:"redis"`
	Telemetry       Telemetry     `yaml:"telemetry"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s" validate:"gt=0"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text" validate:"oneof=text json"`
}

type TCP struct {
	Host         string        `yaml:"host" env:"TCP_HOST" env-default:""`
	Port         int           `yaml:"port" env:"TCP_PORT" env-default:"8888" validate:"min=1,max=65535"`
	WriteTimeout time.Duration `yaml:"write-timeout" env:"TCP_WRITE_TIMEOUT" env-default:"5s" validate:"gte=0"`
}

// Addr is the listen address, e.g. ":8888".
func (that TCP) Addr() string {
	return that.Host + ":" + strconv.Itoa(that.Port)
}

type HTTP struct {
	Enabled bool   `yaml:"enabled" env:"HTTP_ENABLED" env-default:"true"`
	Addr    string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080" validate:"required_if=Enabled true"`
}

type Game struct {
	ReplayOnWin  bool          `yaml:"replay-on-win" env:"GAME_REPLAY_ON_WIN" env-default:"false"`
	BotThinkTime time.Duration `yaml:"bot-think-time" env:"GAME_BOT_THINK_TIME" env-default:"500ms" validate:"gte=0"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr    string `yaml:"addr" env:"REDIS_CONNSTRING" env-default:"localhost:6379" validate:"required_if=Enabled true"`
	Channel string `yaml:"channel" env:"REDIS_CHANNEL" env-default:"channel:events"`
	Buffer  int    `yaml:"buffer" env:"REDIS_BUFFER" env-default:"256" validate:"gte=0"`
}

type Telemetry struct {
	Enabled        bool   `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint       string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"otel-collector:4317" validate:"required_if=Enabled true"`
	ServiceName    string `yaml:"service-name" env:"OTEL_SERVICE_NAME" env-default:"tic-tac-toe-referee"`
	ServiceVersion string `yaml:"service-version" env:"SERVICE_VERSION" env-default:"v0.1.0"`
}

// Load reads path when it exists, otherwise only the environment. Environment
// variables override file values in both cases.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			err = cleanenv.ReadConfig(path, cfg)
		} else if errors.Is(statErr, fs.ErrNotExist) {
			err = cleanenv.ReadEnv(cfg)
		} else {
			err = statErr
		}
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err := validator.GetValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// SlogLevel maps the configured level name to a slog.Level.
func (that Log) SlogLevel() slog.Level {
	switch strings.ToLower(that.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
