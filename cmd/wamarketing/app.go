package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sheet-messaging/internal/cache"
	"github.com/LeventeLantos/sheet-messaging/internal/client"
	"github.com/LeventeLantos/sheet-messaging/internal/config"
	"github.com/LeventeLantos/sheet-messaging/internal/metrics"
	"github.com/LeventeLantos/sheet-messaging/internal/phone"
	"github.com/LeventeLantos/sheet-messaging/internal/repo"
	"github.com/LeventeLantos/sheet-messaging/internal/service"
	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

type app struct {
	cfg      *config.Config
	runner   *service.Runner
	runs     *repo.MemoryRunRepo
	recorder *metrics.Recorder
	receipts *cache.RedisCache
}

func (a *app) Close() {
	if a.receipts != nil {
		_ = a.receipts.Close()
	}
}

// buildApp wires every component from cfg. The opener is injectable so the
// wiring can be exercised without Google credentials.
func buildApp(ctx context.Context, cfg *config.Config, opener sheet.Opener) (*app, error) {
	a := &app{
		cfg:      cfg,
		runs:     repo.NewMemoryRunRepo(cfg.Scheduler.HistorySize),
		recorder: metrics.New(),
	}

	if opener == nil {
		g, err := sheet.NewGoogleOpener(ctx, []byte(cfg.Sheet.Credentials))
		if err != nil {
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		opener = g
	}

	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Wati.MaxAttempts

	wati, err := client.NewWatiClient(client.Options{
		BaseURLs: cfg.Wati.BaseURLs,
		Token:    cfg.Wati.Token,
		Timeout:  cfg.Wati.Timeout,
		Retry:    retry,
		Observer: a.recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("wati client: %w", err)
	}

	normalizer, err := phone.NewNormalizer(cfg.Phone.Policy, cfg.Phone.DefaultCountryCode)
	if err != nil {
		return nil, err
	}

	var receipts cache.ReceiptCache
	if cfg.Redis.Enabled {
		rc := cache.NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.TTL)

		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, delivery receipts disabled", "addr", cfg.Redis.Address, "error", err)
			_ = rc.Close()
		} else {
			a.receipts = rc
			receipts = rc
		}
	}

	contactPacer := service.NewIntervalPacer(cfg.Pacing.ContactInterval)

	syncer := service.NewContactSyncer(wati, normalizer, contactPacer, cfg.Campaigns.Contacts.Columns, a.recorder)
	dispatcher := service.NewDispatcher(service.DispatcherOptions{
		Gateway:      wati,
		Normalizer:   normalizer,
		ContactPacer: contactPacer,
		MessagePacer: service.NewIntervalPacer(cfg.Pacing.MessageInterval),
		Location:     cfg.Business.Location,
		Receipts:     receipts,
		Recorder:     a.recorder,
	})

	runner, err := service.NewRunner(service.RunnerOptions{
		Opener:      opener,
		Spreadsheet: cfg.Sheet.Identifier(),
		Campaigns:   cfg.Campaigns,
		Syncer:      syncer,
		Dispatcher:  dispatcher,
		Runs:        a.runs,
		Observer:    a.recorder,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = runner

	return a, nil
}
