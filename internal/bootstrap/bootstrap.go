// Package bootstrap assembles the orchestration engine from configuration. The api and
// worker binaries share it so both see the same stores, workspaces and logs.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cloudconsole/engine/internal/archive"
	_ "github.com/cloudconsole/engine/internal/archive/azurerm"
	_ "github.com/cloudconsole/engine/internal/archive/gcs"
	_ "github.com/cloudconsole/engine/internal/archive/local"
	_ "github.com/cloudconsole/engine/internal/archive/s3"
	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/provisioner"
	"github.com/cloudconsole/engine/internal/provisioner/terraform"
	"github.com/cloudconsole/engine/internal/provisioner/workspace"
	"github.com/cloudconsole/engine/internal/queue"
	"github.com/cloudconsole/engine/internal/repository"
	"github.com/cloudconsole/engine/internal/services"
	"github.com/cloudconsole/engine/internal/tracker"
	"github.com/cloudconsole/engine/pkg/config"
	"github.com/cloudconsole/engine/pkg/database"
	"github.com/cloudconsole/engine/pkg/logger"
)

// Engine holds everything a DeploymentService needs except its dispatcher.
type Engine struct {
	DB          *gorm.DB
	Records     repository.DeploymentRepository
	Tracker     *tracker.Tracker
	Credentials credentials.Store
	Workspaces  *workspace.Manager
	Logs        *terraform.LogStore
	Provisioner provisioner.Provisioner
	Archive     archive.Archive
	ToolVersion string
}

// Build opens the database, runs migrations and wires the provisioning stack. A missing
// provisioning tool is logged, not fatal; deployments then fail with an unavailable error.
func Build(ctx context.Context, cfg *config.Config) (*Engine, error) {
	log := logger.L()

	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.AppEnv == "development",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := &Engine{DB: db, Records: repository.NewDeploymentRepository(db)}

	switch cfg.TrackerStore {
	case "database":
		e.Tracker = tracker.New(repository.NewStatusStore(db))
	default:
		e.Tracker = tracker.New(tracker.NewMemoryStore())
	}

	switch cfg.CredentialSource {
	case "secretsmanager":
		sm, err := credentials.NewSecretsManagerStore(ctx, cfg.SecretsRegion, cfg.SecretsPrefix)
		if err != nil {
			return nil, err
		}
		e.Credentials = sm
	default:
		e.Credentials = credentials.NewDBStore(repository.NewCloudAccountRepository(db))
	}

	for _, dir := range []string{cfg.WorkingDir, cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	var lib workspace.ModuleLibrary
	if cfg.ModuleLibraryGit != "" {
		lib = workspace.NewGitLibrary(cfg.ModuleLibraryGit, cfg.ModuleLibraryRef, cfg.ModuleLibraryDir, cfg.ModuleLibraryMode)
	} else {
		lib = workspace.NewDirLibrary(cfg.ModuleLibraryDir, cfg.ModuleLibraryMode)
	}
	if err := lib.Check(ctx); err != nil {
		log.Warn("module library not available yet", zap.String("root", lib.Root()), zap.Error(err))
	}

	e.Workspaces = workspace.NewManager(cfg.WorkingDir, lib)
	e.Logs = terraform.NewLogStore(cfg.LogsDir)

	if v, err := terraform.Preflight(ctx, cfg.WorkingDir, cfg.ToolBinary); err != nil {
		log.Warn("provisioning tool preflight failed", zap.String("binary", cfg.ToolBinary), zap.Error(err))
	} else {
		e.ToolVersion = v
		log.Info("provisioning tool ready", zap.String("binary", cfg.ToolBinary), zap.String("version", v))
	}

	runner := terraform.NewRunner(cfg.ToolBinary, cfg.LogTailLines)
	e.Provisioner = provisioner.NewTerraformProvisioner(runner, e.Workspaces, e.Logs, cfg.ApplyTimeout)

	if cfg.ArchiveBackend != "" {
		a, err := archive.New(cfg.ArchiveBackend, cfg.ArchiveSettings())
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		e.Archive = a
		log.Info("artifact archive enabled", zap.String("backend", a.Type()))
	}
	return e, nil
}

// Service builds the facade over e with the given dispatcher.
func (e *Engine) Service(d queue.Dispatcher) services.DeploymentService {
	return services.NewDeploymentService(services.Dependencies{
		Records:     e.Records,
		Credentials: e.Credentials,
		Tracker:     e.Tracker,
		Workspaces:  e.Workspaces,
		Provisioner: e.Provisioner,
		Logs:        e.Logs,
		Dispatcher:  d,
		Archive:     e.Archive,
	})
}

// PingDB reports whether the database answers.
func (e *Engine) PingDB(ctx context.Context) error {
	sqlDB, err := e.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database pool.
func (e *Engine) Close() error {
	sqlDB, err := e.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RedisOpt is the asynq connection for cfg.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0}
}

// NewRedis returns a client for readiness probes and start-up checks.
func NewRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0})
}
