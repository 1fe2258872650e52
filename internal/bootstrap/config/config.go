package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Intake        IntakeConfig        `mapstructure:"intake"`
	Symbolication SymbolicationConfig `mapstructure:"symbolication"`
	Fingerprint   FingerprintConfig   `mapstructure:"fingerprint"`
	Broadcast     BroadcastConfig     `mapstructure:"broadcast"`
	Artifacts     ArtifactsConfig     `mapstructure:"artifacts"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type IntakeConfig struct {
	BatchMax          int           `mapstructure:"batch_max"`
	BatchParallelism  int           `mapstructure:"batch_parallelism"`
	UpsertMaxAttempts int           `mapstructure:"upsert_max_attempts"`
	UpsertBackoffBase time.Duration `mapstructure:"upsert_backoff_base"`
	UpsertBackoffMax  time.Duration `mapstructure:"upsert_backoff_max"`
	EventsPerIssue    int           `mapstructure:"events_per_issue"`
}

type SymbolicationConfig struct {
	ArtifactTimeout time.Duration `mapstructure:"artifact_timeout"`
	MaxMapBytes     int64         `mapstructure:"max_map_bytes"`
	ContextLines    int           `mapstructure:"context_lines"`
}

type FingerprintConfig struct {
	TopFrames  int    `mapstructure:"top_frames"`
	MessageMax int    `mapstructure:"message_max"`
	RulesFile  string `mapstructure:"rules_file"`
	WatchRules bool   `mapstructure:"watch_rules"`
}

type BroadcastConfig struct {
	Buffer            int           `mapstructure:"buffer"`
	Heartbeat         time.Duration `mapstructure:"heartbeat"`
	NATSURL           string        `mapstructure:"nats_url"`
	NATSSubjectPrefix string        `mapstructure:"nats_subject_prefix"`
}

type ArtifactsConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("FL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("server_addr", cfg.Server.Addr),
	)

	return cfg, nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "faultline")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/faultline.sqlite")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("intake.batch_max", 100)
	v.SetDefault("intake.batch_parallelism", 4)
	v.SetDefault("intake.upsert_max_attempts", 5)
	v.SetDefault("intake.upsert_backoff_base", 25*time.Millisecond)
	v.SetDefault("intake.upsert_backoff_max", 400*time.Millisecond)
	v.SetDefault("intake.events_per_issue", 100)

	v.SetDefault("symbolication.artifact_timeout", 2*time.Second)
	v.SetDefault("symbolication.max_map_bytes", 16<<20)
	v.SetDefault("symbolication.context_lines", 5)

	v.SetDefault("fingerprint.top_frames", 5)
	v.SetDefault("fingerprint.message_max", 200)
	v.SetDefault("fingerprint.rules_file", "")
	v.SetDefault("fingerprint.watch_rules", false)

	v.SetDefault("broadcast.buffer", 64)
	v.SetDefault("broadcast.heartbeat", 30*time.Second)
	v.SetDefault("broadcast.nats_url", "")
	v.SetDefault("broadcast.nats_subject_prefix", "faultline.events")

	v.SetDefault("artifacts.max_upload_bytes", 32<<20)
}
