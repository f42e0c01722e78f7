package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/ColisBox/config"
	"github.com/BearBump/ColisBox/internal/broker/kafka"
	"github.com/BearBump/ColisBox/internal/integrations/seventeentrack"
	"github.com/BearBump/ColisBox/internal/mailbox"
	"github.com/BearBump/ColisBox/internal/registry"
	"github.com/BearBump/ColisBox/internal/services/engine"
	"github.com/BearBump/ColisBox/internal/storage"
	"github.com/BearBump/ColisBox/internal/storage/filestore"
	"github.com/BearBump/ColisBox/internal/storage/pgstore"
	"github.com/BearBump/ColisBox/internal/storage/redisstore"
)

// providerClient — полный клиент провайдера: движку нужна часть методов,
// HTTP-слою и бутстрапу — квота и проверка ключа.
type providerClient interface {
	engine.Provider
	GetQuota(ctx context.Context) (seventeentrack.Quota, error)
	ValidateCredential(ctx context.Context) error
}

type engineFactories struct {
	newStore    func(cfg *config.Config) (store storage.Store, closeFn func(), err error)
	newProvider func(cfg *config.Config) providerClient
	newMailbox  func(cfg *config.Config) (engine.MailFetcher, error)
	newProducer func(cfg *config.Config) engine.Producer
}

func defaultEngineFactories() engineFactories {
	return engineFactories{
		newStore: func(cfg *config.Config) (storage.Store, func(), error) {
			switch cfg.Storage.Backend {
			case "", "file":
				path := cfg.Storage.FilePath
				if path == "" {
					path = "colisbox.json"
				}
				return filestore.New(path), nil, nil
			case "redis":
				return redisstore.New(cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Key), nil, nil
			case "postgres":
				st, err := pgstore.New(cfg.Storage.Postgres.ConnString())
				if err != nil {
					return nil, nil, err
				}
				return st, st.Close, nil
			default:
				return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
			}
		},
		newProvider: func(cfg *config.Config) providerClient {
			minInterval := time.Duration(cfg.Provider.MinRequestIntervalMS) * time.Millisecond
			return seventeentrack.New(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.APIVersion, minInterval)
		},
		newMailbox: func(cfg *config.Config) (engine.MailFetcher, error) {
			if cfg.Mailbox.Server == "" {
				return nil, nil
			}
			return mailbox.New(mailbox.Config{
				Server:   cfg.Mailbox.Server,
				Port:     cfg.Mailbox.Port,
				Username: cfg.Mailbox.Username,
				Password: cfg.Mailbox.Password,
				Folder:   cfg.Mailbox.Folder,
				Security: cfg.Mailbox.Security,
			}), nil
		},
		newProducer: func(cfg *config.Config) engine.Producer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			return kafka.NewProducer([]string{cfg.Kafka.Addr()})
		},
	}
}

func RunColisEngine(ctx context.Context, cfg *config.Config, swaggerPath string, f engineFactories) error {
	store, closeFn, err := f.newStore(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	provider := f.newProvider(cfg)

	// Кривой ключ должен быть виден сразу, но временная недоступность
	// провайдера не повод не стартовать.
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := provider.ValidateCredential(checkCtx); err != nil {
		slog.Warn("provider credential check failed", "error", err.Error())
	}
	cancel()

	records, err := store.Load(ctx)
	if err != nil {
		return err
	}
	reg := registry.New()
	reg.LoadRecords(records)
	slog.Info("registry loaded", "packages", reg.Len())

	updateInterval := time.Duration(cfg.Engine.UpdateIntervalMinutes) * time.Minute
	emailInterval := time.Duration(cfg.Engine.EmailIntervalMinutes) * time.Minute

	// 0 — не задано (берём дефолт 2 дня), отрицательное — автоархив выключен.
	archiveDays := cfg.Engine.ArchiveAfterDays
	if archiveDays == 0 {
		archiveDays = 2
	}
	archiveAfter := time.Duration(archiveDays) * 24 * time.Hour
	if archiveDays < 0 {
		archiveAfter = 0
	}

	eng := engine.New(reg, store, provider).
		WithSettings(updateInterval, emailInterval, archiveAfter)

	mail, err := f.newMailbox(cfg)
	if err != nil {
		return err
	}
	if mail != nil {
		if mb, ok := mail.(*mailbox.Mailbox); ok {
			if err := mb.CheckConnection(ctx); err != nil {
				slog.Warn("mailbox connection check failed", "error", err.Error())
			}
		}
		lookback := time.Duration(cfg.Mailbox.LookbackHours) * time.Hour
		eng.WithMailbox(mail, lookback, cfg.Mailbox.FetchLimit, cfg.Mailbox.Dedicated)
	}

	if producer := f.newProducer(cfg); producer != nil {
		eng.WithProducer(producer, cfg.Kafka.PackageUpdatedTopicName)
	}

	go func() {
		err := runEngineHTTPServer(ctx, engineHTTPOpts{
			httpAddr:    cfg.Engine.HTTPAddr,
			swaggerPath: swaggerPath,
			engine:      eng,
			registry:    reg,
			provider:    provider,
			cfg:         cfg,
		})
		if err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "error", err.Error())
		}
	}()

	return eng.Run(ctx)
}
