package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required_if=Dispatcher asynq"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	// Provisioning
	WorkingDir        string        `mapstructure:"WORKING_DIR" validate:"required"`
	LogsDir           string        `mapstructure:"LOGS_DIR" validate:"required"`
	ModuleLibraryDir  string        `mapstructure:"MODULE_LIBRARY_DIR" validate:"required"`
	ModuleLibraryMode string        `mapstructure:"MODULE_LIBRARY_MODE" validate:"required,oneof=symlink copy"`
	ModuleLibraryGit  string        `mapstructure:"MODULE_LIBRARY_GIT_URL" validate:"omitempty,url"`
	ModuleLibraryRef  string        `mapstructure:"MODULE_LIBRARY_GIT_REF"`
	ToolBinary        string        `mapstructure:"TOOL_BINARY" validate:"required"`
	ApplyTimeout      time.Duration `mapstructure:"APPLY_TIMEOUT" validate:"required"`
	LogTailLines      int           `mapstructure:"LOG_TAIL_LINES" validate:"gte=1,lte=1000"`

	Dispatcher       string `mapstructure:"DISPATCHER" validate:"required,oneof=local asynq"`
	TrackerStore     string `mapstructure:"TRACKER_STORE" validate:"required,oneof=memory database"`
	CredentialSource string `mapstructure:"CREDENTIAL_SOURCE" validate:"required,oneof=database secretsmanager"`
	SecretsPrefix    string `mapstructure:"SECRETS_PREFIX"`
	SecretsRegion    string `mapstructure:"SECRETS_REGION"`

	ArchiveBackend   string `mapstructure:"ARCHIVE_BACKEND" validate:"omitempty,oneof=local s3 gcs azurerm"`
	ArchiveBucket    string `mapstructure:"ARCHIVE_BUCKET"`
	ArchivePrefix    string `mapstructure:"ARCHIVE_PREFIX"`
	ArchiveRegion    string `mapstructure:"ARCHIVE_REGION"`
	ArchiveEndpoint  string `mapstructure:"ARCHIVE_ENDPOINT"`
	ArchivePath      string `mapstructure:"ARCHIVE_PATH"`
	ArchiveAccount   string `mapstructure:"ARCHIVE_ACCOUNT"`
	ArchiveContainer string `mapstructure:"ARCHIVE_CONTAINER"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
}

// ArchiveSettings returns the archive backend settings in the key/value form the
// archive registry expects.
func (c *Config) ArchiveSettings() map[string]string {
	return map[string]string{
		"bucket":               c.ArchiveBucket,
		"prefix":               c.ArchivePrefix,
		"region":               c.ArchiveRegion,
		"endpoint":             c.ArchiveEndpoint,
		"path":                 c.ArchivePath,
		"storage_account_name": c.ArchiveAccount,
		"container_name":       c.ArchiveContainer,
	}
}

var (
	cfg      *Config
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		// asynq jobs finish in the worker process, which only shares the database
		if c.Dispatcher == "asynq" && c.TrackerStore != "database" {
			sl.ReportError(c.TrackerStore, "TrackerStore", "TRACKER_STORE", "database_with_asynq", c.TrackerStore)
		}
	}, Config{})
	return v
}

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_DRIVER",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"WORKING_DIR",
	"LOGS_DIR",
	"MODULE_LIBRARY_DIR",
	"MODULE_LIBRARY_MODE",
	"MODULE_LIBRARY_GIT_URL",
	"MODULE_LIBRARY_GIT_REF",
	"TOOL_BINARY",
	"APPLY_TIMEOUT",
	"LOG_TAIL_LINES",
	"DISPATCHER",
	"TRACKER_STORE",
	"CREDENTIAL_SOURCE",
	"SECRETS_PREFIX",
	"SECRETS_REGION",
	"ARCHIVE_BACKEND",
	"ARCHIVE_BUCKET",
	"ARCHIVE_PREFIX",
	"ARCHIVE_REGION",
	"ARCHIVE_ENDPOINT",
	"ARCHIVE_PATH",
	"ARCHIVE_ACCOUNT",
	"ARCHIVE_CONTAINER",
	"JWT_SECRET",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "data/console.db")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("WORKING_DIR", "data/deployments")
	v.SetDefault("LOGS_DIR", "data/logs")
	v.SetDefault("MODULE_LIBRARY_DIR", "terraform/modules")
	v.SetDefault("MODULE_LIBRARY_MODE", "symlink")
	v.SetDefault("TOOL_BINARY", "terraform")
	v.SetDefault("APPLY_TIMEOUT", "45m")
	v.SetDefault("LOG_TAIL_LINES", 20)
	v.SetDefault("DISPATCHER", "local")
	v.SetDefault("TRACKER_STORE", "memory")
	v.SetDefault("CREDENTIAL_SOURCE", "database")
	v.SetDefault("SECRETS_PREFIX", "cloud-console/accounts")

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	for key, dst := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"APPLY_TIMEOUT":    &c.ApplyTimeout,
	} {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
