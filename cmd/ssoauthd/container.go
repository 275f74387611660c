// Package main is the ssoauthd composition root: it owns infrastructure
// (DB, Redis) and wires C1..C9 into a Handlers value that main.go
// mounts onto a fiber app via RegisterRoutes.
//
// Grounded on pkg/iam/iamcontainer/container.go's wiring order and
// cmd/container.go's initInfrastructure (sqlx.Connect DSN building,
// pool size config, redis ping check).
package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/manifesto/pkg/config"
	"github.com/Abraxas-365/manifesto/pkg/logx"
	"github.com/Abraxas-365/manifesto/pkg/notifx"
	"github.com/Abraxas-365/manifesto/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/api"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/authn"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/engine"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/notify"
	oa "github.com/Abraxas-365/manifesto/pkg/ssoauth/oauth2"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/password"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storepg"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store/storesqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

// Container holds the process's infrastructure handles plus the
// composed HTTP Handlers.
type Container struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client

	store    store.Store
	Handlers *api.Handlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("initializing ssoauthd container...")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initHandlers()

	logx.Info("ssoauthd container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	var s store.Store

	switch c.Config.Database.Driver {
	case "sqlite3", "sqlite":
		db, err := sqlx.Connect("sqlite3", c.Config.Database.SQLitePath)
		if err != nil {
			logx.Fatalf("failed to open sqlite database: %v", err)
		}
		db.SetMaxOpenConns(1)
		c.DB = db
		sqliteStore := storesqlite.New(db)
		if err := sqliteStore.Migrate(context.Background()); err != nil {
			logx.Fatalf("failed to migrate sqlite database: %v", err)
		}
		s = sqliteStore
		logx.Info("  sqlite store ready")

	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Config.Database.Host,
			c.Config.Database.Port,
			c.Config.Database.User,
			c.Config.Database.Password,
			c.Config.Database.Name,
			c.Config.Database.SSLMode,
		)
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			logx.Fatalf("failed to connect to database: %v", err)
		}
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
		db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
		c.DB = db
		pgStore := storepg.New(db)
		if err := pgStore.Migrate(context.Background()); err != nil {
			logx.Fatalf("failed to migrate database: %v", err)
		}
		s = pgStore
		logx.Info("  postgres store ready")
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("failed to connect to redis: %v", err)
	}
	logx.Info("  redis connected")

	c.store = s
}

func (c *Container) initHandlers() {
	hasher := password.New(password.DefaultParams())

	emailSender := notifxconsole.NewConsoleProvider()
	notifxClient := notifx.NewClient(emailSender)
	notifier := notify.New(notifxClient, c.Config.Notifx.FromAddress, c.Config.Notifx.FromName)

	engineCfg := engine.Config{
		AccessTokenTTL:               c.Config.SSOAuth.AccessTokenTTL,
		RefreshTokenTTL:              c.Config.SSOAuth.RefreshTokenTTL,
		ResetPasswordTokenTTL:        c.Config.SSOAuth.ResetPasswordTokenTTL,
		UpdateEmailRevokeTokenTTL:    c.Config.SSOAuth.UpdateEmailRevokeTokenTTL,
		UpdatePasswordRevokeTokenTTL: c.Config.SSOAuth.UpdatePasswordRevokeTokenTTL,
	}
	eng := engine.New(c.store, hasher, notifier, engineCfg)
	authenticator := authn.New(c.store)

	providers := map[oa.ProviderName]*oa.Provider{}
	if c.Config.SSOAuth.GithubClientID != "" {
		providers[oa.ProviderGithub] = oa.NewGithub(oa.ProviderConfig{
			ClientID:     c.Config.SSOAuth.GithubClientID,
			ClientSecret: c.Config.SSOAuth.GithubClientSecret,
			RedirectURL:  c.Config.SSOAuth.GithubRedirectURL,
		})
	}
	if c.Config.SSOAuth.MicrosoftClientID != "" {
		providers[oa.ProviderMicrosoft] = oa.NewMicrosoft(oa.ProviderConfig{
			ClientID:     c.Config.SSOAuth.MicrosoftClientID,
			ClientSecret: c.Config.SSOAuth.MicrosoftClientSecret,
			RedirectURL:  c.Config.SSOAuth.MicrosoftRedirectURL,
			TenantID:     c.Config.SSOAuth.MicrosoftTenantID,
		})
	}

	states := oa.NewRedisStateManager(c.Redis)

	c.Handlers = api.New(api.Deps{
		Store:           c.store,
		Engine:          eng,
		Authn:           authenticator,
		OAuth2Providers: providers,
		OAuth2States:    states,
	})
}

func (c *Container) Cleanup() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing redis: %v", err)
		}
	}
	logx.Info("cleanup complete")
}
