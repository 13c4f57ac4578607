package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/database/migration"
	dbpostgres "outreach-engine/internal/database/postgres"
	"outreach-engine/internal/engine"
	"outreach-engine/internal/events"
	"outreach-engine/internal/infrastructure/ai"
	"outreach-engine/internal/infrastructure/cache"
	"outreach-engine/internal/infrastructure/mail"
	"outreach-engine/internal/repository"
	"outreach-engine/internal/ws"
)

// Container holds every long-lived collaborator. Optional backends are nil
// when their configuration is absent.
type Container struct {
	Config   config.Config
	Logger   *log.Logger
	Settings *config.SettingsStore
	Bus      *events.Bus
	DB       *dbpostgres.Pool
	Redis    *cache.Redis
	Engine   *engine.Engine
	Hub      *ws.Hub
	Watcher  *mail.Watcher
}

func NewContainer(ctx context.Context, cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Container{Config: cfg, Logger: logger}

	settings, err := config.LoadSettings(cfg.App.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	c.Settings = settings
	c.Bus = events.NewBus(events.WithLogger(logger))
	c.Redis = cache.NewRedis(cfg.Redis, logger)
	c.Hub = ws.NewHub(logger)

	deps := engine.Deps{Bus: c.Bus, Settings: settings, Logger: logger}

	if cfg.Database.Enabled() {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := dbpostgres.Open(dctx, cfg.Database, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.DB = db
		if err := (migration.Runner{Logger: logger}).Run(dctx, db.Raw()); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		deps.Repository = repository.NewPostgresPipelineRepository(db)
		deps.Counters = repository.NewPostgresCounterRepository(db)
	} else {
		logger.Printf("component=app action=bootstrap database=disabled reason=no_db_host")
	}
	if c.Redis.Ping(ctx) == nil {
		deps.Counters = c.Redis
	}

	if cfg.AI.Enabled() {
		gen, err := ai.NewGenerator(ctx, cfg.AI, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Generator = gen
	} else {
		logger.Printf("component=app action=bootstrap generator=fallback_template reason=no_api_key")
	}

	if cfg.Mail.Enabled() {
		gm, err := mail.NewGmail(ctx, cfg.Mail, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Transport = gm
		c.Engine = engine.New(deps)
		c.Watcher = mail.NewWatcher(gm, c.Engine, c.Redis, logger)
	} else {
		logger.Printf("component=app action=bootstrap transport=dry_run")
		deps.Transport = mail.NewDryRun(logger)
		c.Engine = engine.New(deps)
	}

	return c, nil
}

// Start restores persisted state and starts the engine ticks, the event
// fan-out and the inbox watcher. Everything stops when ctx is done or Stop
// is called.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := c.Engine.Start(ctx); err != nil {
		return err
	}

	go c.Hub.Run(ctx)
	go c.Hub.Forward(ctx, c.Bus)
	go c.Redis.RunEventSink(ctx, c.Bus)

	iv := c.Settings.Current().Intervals
	if err := c.Engine.Every("metrics_mirror", iv.Metrics, func(ctx context.Context) error {
		return c.Redis.SaveMetrics(ctx, c.Engine.LastMetrics())
	}); err != nil {
		return err
	}
	if c.Watcher != nil {
		if err := c.Engine.Every("reply_watch", iv.ReplyWatch, func(ctx context.Context) error {
			_, err := c.Watcher.Sync(ctx)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) Stop(ctx context.Context) error {
	if c == nil || c.Engine == nil {
		return nil
	}
	return c.Engine.Stop(ctx)
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
