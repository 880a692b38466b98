// Package config loads settings from defaults, a YAML file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/logging"
	"github.com/conorfennell/knolstudy/internal/schedule"
)

// EnvPrefix prefixes every environment variable read. Nested keys are
// separated by a double underscore: KNOLSTUDY_SERVER__ADDR sets server.addr.
const EnvPrefix = "KNOLSTUDY_"

// DefaultFile is read when present and no file is named explicitly.
const DefaultFile = "knolstudy.yaml"

// Config struct is the top-level configuration structure.
type Config struct {
	DB       string           `koanf:"db" validate:"required"`
	ReposDir string           `koanf:"repos_dir" validate:"required"`
	Server   ServerConfig     `koanf:"server"`
	Client   ClientConfig     `koanf:"client"`
	Schedule schedule.Buckets `koanf:"schedule"`
	Quiz     QuizConfig       `koanf:"quiz"`
	Log      logging.Config   `koanf:"log"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr           string   `koanf:"addr" validate:"required"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ClientConfig holds settings for talking to the HTTP API.
type ClientConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// QuizConfig holds settings for video quiz playback.
type QuizConfig struct {
	TriggerWindow float64 `koanf:"trigger_window" validate:"gt=0"`
}

func defaults() map[string]any {
	b := schedule.DefaultBuckets()
	return map[string]any{
		"db":                     "knolstudy.db",
		"repos_dir":              "repos",
		"server.addr":            ":8080",
		"server.allowed_origins": []string{"http://localhost:3000"},
		"client.base_url":        "http://localhost:8080",
		"client.timeout":         10 * time.Second,
		"schedule.again":         b.Again,
		"schedule.hard":          b.Hard,
		"schedule.good":          b.Good,
		"schedule.easy":          b.Easy,
		"quiz.trigger_window":    1.0,
		"log.level":              "info",
		"log.dir":                "",
		"log.max_size":           10,
		"log.max_backups":        3,
		"log.max_age":            7,
		"log.compress":           true,
	}
}

// flagKeys maps command-line flag names to configuration keys. Flags not
// listed are not configuration.
var flagKeys = map[string]string{
	"db":             "db",
	"repos-dir":      "repos_dir",
	"addr":           "server.addr",
	"base-url":       "client.base_url",
	"timeout":        "client.timeout",
	"trigger-window": "quiz.trigger_window",
	"log-level":      "log.level",
	"log-dir":        "log.dir",
}

// RegisterFlags adds the configuration flags shared by every command.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Path to a YAML configuration file (default "+DefaultFile+" if present)")
	flags.String("db", "", "Path to the SQLite database file")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-dir", "", "Directory for rotating JSON log files")
}

// Load builds the configuration. path names a YAML file; when empty,
// DefaultFile is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("error reading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint of cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// envKey turns KNOLSTUDY_LOG__MAX_SIZE into log.max_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
