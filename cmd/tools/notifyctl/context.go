// cmd/tools/notifyctl/context.go
package main

import (
	"context"
	"database/sql"
	"fmt"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/database"
	httpclient "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/notifications/catalog"
	"notification-dispatch/internal/notifications/templates"
	"notification-dispatch/internal/notifications/vault"
	"notification-dispatch/internal/store"
)

// commandContext loads configuration and opens the database lazily, once per invocation.
type commandContext struct {
	configPath string
	jsonOutput bool

	loadConfig func(path string) (*config.Config, error)
	openDB     func(cfg config.PostgresConfig) (*sql.DB, error)

	cfg *config.Config
	db  *sql.DB
}

func newCommandContext() *commandContext {
	return &commandContext{
		loadConfig: func(path string) (*config.Config, error) {
			if path == "" {
				return config.Load()
			}
			return config.LoadFromFile(path)
		},
		openDB: func(cfg config.PostgresConfig) (*sql.DB, error) {
			pg, err := database.NewPostgres(cfg)
			if err != nil {
				return nil, err
			}
			return pg.DB, nil
		},
	}
}

func (c *commandContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := c.loadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) store(ctx context.Context) (*store.Store, error) {
	if c.db == nil {
		cfg, err := c.config()
		if err != nil {
			return nil, err
		}
		db, err := c.openDB(cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		c.db = db
	}
	return store.New(c.db), nil
}

// manager wires a template manager over the configured store. AWS clients are left
// out; ses and sns templates cannot be test-sent from here.
func (c *commandContext) manager(ctx context.Context) (*templates.Manager, *store.Store, error) {
	st, err := c.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	v, err := vault.New(cfg.Notifications.SecretKey)
	if err != nil {
		return nil, nil, err
	}
	cat := catalog.New(catalog.Dependencies{
		HTTP:              httpclient.NewClient(config.GetDuration(cfg.Integrations.HTTP.Timeout)),
		TelegramServerURL: cfg.Integrations.Telegram.ServerURL,
	})
	return templates.NewManager(st, cat, v, logger.NewNoOpLogger()), st, nil
}

func (c *commandContext) close() {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}
