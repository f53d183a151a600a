// This file contains the viewer configuration and how it is assembled: built-in defaults, then an optional TOML
// file, then an optional .env file, then the process environment. Later sources win.
//
// The environment variable names follow the ones used by the deployment (docker compose) files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultEnvFile = "secrets/.env"
	DefaultPort    = 5000
)

type LogConfig struct {
	File        string `toml:"file"`
	Development bool   `toml:"development"`
	Debug       bool   `toml:"debug"`
}

type RabbitMQConfig struct {
	IP       string `toml:"ip" validate:"omitempty,hostname_rfc1123|ip"`
	User     string `toml:"user" validate:"required_with=IP"`
	Password string `toml:"password"`
	Queue    string `toml:"queue"`
}

// Enabled reports whether navigation events should be published.
func (c RabbitMQConfig) Enabled() bool {
	return c.IP != ""
}

// URL returns the AMQP connection string for the broker.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:5672/", c.User, c.Password, c.IP)
}

// Config holds every setting of the viewer process.
type Config struct {
	IP           string         `toml:"ip" validate:"omitempty,hostname_rfc1123|ip"`
	Port         int            `toml:"port" validate:"min=1,max=65535"`
	AssetsDir    string         `toml:"assets_dir" validate:"omitempty,dir"`
	StartSceneID int            `toml:"start_scene_id" validate:"min=0"`
	CORSOrigins  string         `toml:"cors_origins"`
	Log          LogConfig      `toml:"log"`
	RabbitMQ     RabbitMQConfig `toml:"rabbitmq"`
}

// Default returns the configuration used when nothing is set: listen on all interfaces, embedded assets,
// start at the head scene, no broker.
func Default() Config {
	return Config{
		Port:        DefaultPort,
		CORSOrigins: "*",
		Log: LogConfig{
			File: "viewer.log",
		},
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.IP + ":" + strconv.Itoa(c.Port)
}

// Load assembles the configuration. Either path may be empty; files that do not exist are skipped.
func Load(tomlPath, envPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		data, err := os.ReadFile(tomlPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", tomlPath, err)
			}
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.IP, "WEBSERVER_IP")
	setString(&cfg.AssetsDir, "ASSETS_DIR")
	setString(&cfg.CORSOrigins, "CORS_ORIGINS")
	setString(&cfg.Log.File, "LOG_FILE")
	setString(&cfg.RabbitMQ.IP, "RABBITMQ_IP")
	setString(&cfg.RabbitMQ.User, "RABBITMQ_DEFAULT_USER")
	setString(&cfg.RabbitMQ.Password, "RABBITMQ_DEFAULT_PASS")
	setString(&cfg.RabbitMQ.Queue, "NAVIGATION_QUEUE")

	if err := setInt(&cfg.Port, "WEBSERVER_PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.StartSceneID, "START_SCENE_ID"); err != nil {
		return err
	}
	if err := setBool(&cfg.Log.Development, "LOG_DEVELOPMENT"); err != nil {
		return err
	}
	return setBool(&cfg.Log.Debug, "LOG_DEBUG")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
