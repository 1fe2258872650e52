package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"faultline/internal/bootstrap/config"
	"faultline/internal/bootstrap/database"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/fingerprint"
	cacheinfra "faultline/internal/infrastructure/cache"
	sqliterepo "faultline/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "faultline/internal/infrastructure/persistence/sqlite/uow"
	"faultline/internal/ports"
	"faultline/internal/symbolicate"
	"faultline/internal/usecase/intake"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIssueRepository,
			fx.As(new(ports.IssueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewEventRepository,
			fx.As(new(ports.EventRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewArtifactRepository,
			fx.As(new(ports.ArtifactRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewReleaseRepository,
			fx.As(new(ports.ReleaseRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideClassifier),
	fx.Provide(provideFingerprinter),
	fx.Provide(provideEngine),
	fx.Provide(provideRegistry),
	fx.Provide(provideIntakeService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideClassifier(lc fx.Lifecycle, cfg config.Config) (*fingerprint.Classifier, error) {
	classifier := fingerprint.NewClassifier()

	if cfg.Fingerprint.RulesFile != "" {
		if err := classifier.LoadFile(cfg.Fingerprint.RulesFile); err != nil {
			return nil, err
		}
		if cfg.Fingerprint.WatchRules {
			if err := classifier.Watch(); err != nil {
				return nil, err
			}
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return classifier.Close()
		},
	})

	return classifier, nil
}

func provideFingerprinter(classifier *fingerprint.Classifier, cfg config.Config) *fingerprint.Fingerprinter {
	return fingerprint.New(classifier, fingerprint.Options{
		TopFrames:  cfg.Fingerprint.TopFrames,
		MessageMax: cfg.Fingerprint.MessageMax,
	})
}

func provideEngine(artifacts ports.ArtifactRepository, memo ports.Cache, cfg config.Config) *symbolicate.Engine {
	return symbolicate.NewEngine(artifacts, memo, symbolicate.Options{
		ArtifactTimeout: cfg.Symbolication.ArtifactTimeout,
		MaxMapBytes:     cfg.Symbolication.MaxMapBytes,
		ContextLines:    cfg.Symbolication.ContextLines,
	})
}

// provideRegistry builds the live fan-out hub. The init snapshot counts
// issues through the issue repository, and when broadcast.nats_url is set
// every envelope is also relayed onto NATS for off-process consumers.
func provideRegistry(lc fx.Lifecycle, ctx context.Context, cfg config.Config, issues ports.IssueRepository) (*broadcast.Registry, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	opts := broadcast.Options{
		Buffer:   cfg.Broadcast.Buffer,
		Snapshot: issues.CountByProject,
	}

	if cfg.Broadcast.NATSURL != "" {
		relay, err := broadcast.NewRelay(logCtx, cfg.Broadcast.NATSURL, cfg.Broadcast.NATSSubjectPrefix)
		if err != nil {
			return nil, err
		}
		opts.Tap = relay.Tap
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return relay.Close()
			},
		})
		logging.Info(logCtx, "broadcast relay connected", slog.String("nats_url", cfg.Broadcast.NATSURL))
	}

	registry := broadcast.NewRegistry(opts)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			registry.Close()
			return nil
		},
	})

	return registry, nil
}

func provideIntakeService(
	issues ports.IssueRepository,
	events ports.EventRepository,
	artifacts ports.ArtifactRepository,
	releases ports.ReleaseRepository,
	uow ports.UnitOfWork,
	engine *symbolicate.Engine,
	prints *fingerprint.Fingerprinter,
	registry *broadcast.Registry,
	cfg config.Config,
) *intake.Service {
	return intake.NewService(issues, events, artifacts, releases, uow, engine, prints, registry, intake.Config{
		BatchMax:          cfg.Intake.BatchMax,
		BatchParallelism:  cfg.Intake.BatchParallelism,
		UpsertMaxAttempts: cfg.Intake.UpsertMaxAttempts,
		UpsertBackoffBase: cfg.Intake.UpsertBackoffBase,
		UpsertBackoffMax:  cfg.Intake.UpsertBackoffMax,
		MaxUploadBytes:    cfg.Artifacts.MaxUploadBytes,
		EventsPerIssue:    cfg.Intake.EventsPerIssue,
	})
}
