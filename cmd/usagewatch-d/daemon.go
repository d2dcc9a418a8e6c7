package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rmax-ai/usagewatch/pkg/api"
	"github.com/rmax-ai/usagewatch/pkg/engine"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/provider"
	"github.com/rmax-ai/usagewatch/pkg/provider/claude"
	"github.com/rmax-ai/usagewatch/pkg/store"
	"github.com/rmax-ai/usagewatch/pkg/store/redis"
)

const shutdownTimeout = 5 * time.Second

type daemon struct {
	logger  zerolog.Logger
	state   *store.State
	surface *notify.Memory
	sched   *engine.Scheduler
	orch    *engine.Orchestrator
	server  *api.Server
	webhook *notify.Async
}

func newDaemon(ctx context.Context, cfg *Config, logger zerolog.Logger) (*daemon, error) {
	state, err := openState(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Notify.Location()
	if err != nil {
		state.Close()
		return nil, err
	}

	surface := notify.NewMemory(cfg.Notify.History)
	displays := notify.Multi{surface}
	if cfg.Notify.Log {
		displays = append(displays, notify.NewLogDisplay(logger))
	}
	var webhook *notify.Async
	if cfg.Notify.Webhook.URL != "" {
		webhook = notify.NewAsync(notify.NewWebhookDisplay(notify.WebhookConfig{
			URL:        cfg.Notify.Webhook.URL,
			Secret:     cfg.Notify.Webhook.Secret,
			Timeout:    cfg.Notify.Webhook.Timeout,
			MaxRetries: cfg.Notify.Webhook.MaxRetries,
		}, logger), cfg.Notify.Webhook.Deadline, logger)
		displays = append(displays, webhook)
		logger.Info().Str("url", cfg.Notify.Webhook.URL).Msg("webhook display enabled")
	}

	sched := engine.NewScheduler(cfg.Schedule.Unit, logger)
	orch := engine.NewOrchestrator(newProvider(cfg.Provider, state), state, displays, notify.NewComposer(loc), sched, logger)

	server := api.NewServer(orch, state, cfg.Server.Addr, logger.With().Str("component", "api").Logger())
	server.SetSurface(surface)
	server.SetSchedules(sched)

	return &daemon{
		logger:  logger,
		state:   state,
		surface: surface,
		sched:   sched,
		orch:    orch,
		server:  server,
		webhook: webhook,
	}, nil
}

func newProvider(cfg ProviderConfig, cache provider.OrgCache) provider.Client {
	if cfg.Type == providerMock {
		return provider.NewMockClient()
	}
	return claude.NewClient(claude.Config{
		BaseURL:    cfg.BaseURL,
		SessionKey: cfg.SessionKey,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
	}, cache)
}

// openState opens the local scope and then the synced scope, which may be
// the same database.
func openState(ctx context.Context, cfg StorageConfig) (*store.State, error) {
	var local store.KV
	switch cfg.Local.Type {
	case storageMemory:
		local = store.NewMemoryStore()
	default:
		s, err := store.NewStore(cfg.Local.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		local = s
	}

	synced, err := openSynced(ctx, cfg, local)
	if err != nil {
		local.Close()
		return nil, err
	}
	return store.NewState(local, synced), nil
}

func openSynced(ctx context.Context, cfg StorageConfig, local store.KV) (store.KV, error) {
	switch cfg.Synced.Type {
	case storageMemory:
		return store.NewMemoryStore(), nil
	case storageRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Synced.Redis.Addr,
			Password: cfg.Synced.Redis.Password,
			DB:       cfg.Synced.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Synced.Redis.Addr, err)
		}
		return redis.NewKV(client, cfg.Synced.Redis.Prefix), nil
	default:
		if cfg.Synced.Path == "" || (cfg.Local.Type == storageSQLite && cfg.Synced.Path == cfg.Local.Path) {
			return local, nil
		}
		s, err := store.NewStore(cfg.Synced.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open synced store: %w", err)
		}
		return s, nil
	}
}

// boot handles install on the first run against this local scope and
// startup afterwards, then starts the alarms.
func (d *daemon) boot(ctx context.Context) (engine.EventKind, engine.Response, error) {
	installedAt, err := d.state.InstalledAt(ctx)
	if err != nil {
		return "", engine.Response{}, fmt.Errorf("failed to read install marker: %w", err)
	}

	kind := engine.EventStartup
	if installedAt == nil {
		kind = engine.EventInstall
	}
	resp := d.orch.Dispatch(ctx, engine.Event{Kind: kind})
	if !resp.Success {
		d.logger.Warn().Str("event", string(kind)).Str("error", resp.Error).Msg("initial fetch failed")
	} else {
		d.logger.Info().Str("event", string(kind)).Msg("initial fetch complete")
	}

	d.sched.Start(ctx, d.orch.HandleAlarm)
	return kind, resp, nil
}

// run boots, serves until ctx is done, then stops the scheduler, the API
// server and the stores in that order.
func (d *daemon) run(ctx context.Context) error {
	if _, _, err := d.boot(ctx); err != nil {
		d.state.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		d.logger.Info().Msg("shutdown_initiated")
	case serveErr = <-errCh:
		if serveErr != nil {
			d.logger.Error().Err(serveErr).Msg("server failed")
		}
	}

	d.sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Stop(shutdownCtx); err != nil {
		d.logger.Error().Err(err).Msg("failed to stop server")
	}
	if d.webhook != nil {
		if err := d.webhook.Close(shutdownCtx); err != nil {
			d.logger.Warn().Err(err).Msg("pending webhook deliveries dropped")
		}
	}

	if err := d.state.Close(); err != nil {
		d.logger.Error().Err(err).Msg("failed to close stores")
		serveErr = errors.Join(serveErr, err)
	} else {
		d.logger.Info().Msg("store_closed")
	}

	d.logger.Info().Msg("shutdown_complete")
	return serveErr
}
