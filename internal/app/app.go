// Package app wires the gateway together and runs it until the context is
// cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"brewble/internal/api"
	"brewble/internal/config"
	"brewble/internal/dispatch"
	"brewble/internal/engine"
	"brewble/internal/ingest"
	"brewble/internal/metrics"
	"brewble/internal/model"
	"brewble/internal/status"
	"brewble/internal/storage"
)

// ErrNoSource is returned when neither the radio nor any remote feed is
// enabled.
var ErrNoSource = errors.New("no advertisement source enabled")

type Option func(*runner)

// WithRadio replaces the local BLE adapter.
func WithRadio(r ingest.Radio) Option {
	return func(rn *runner) { rn.radio = r }
}

type runner struct {
	radio ingest.Radio
}

func Run(ctx context.Context, mgr *config.Manager, logger *slog.Logger, version string, opts ...Option) error {
	rn := &runner{}
	for _, opt := range opts {
		opt(rn)
	}
	cfg := mgr.Get()
	if !cfg.Scan.Enabled && !remoteEnabled(cfg) {
		return ErrNoSource
	}

	collectors := metrics.NewCollectors()

	var cache *status.Writer
	if cfg.Cache.Addr != "" {
		kv := status.NewRedisKVStore(status.NewRedisClient(cfg.Cache))
		defer kv.Close()
		cache = status.NewWriter(kv, cfg.Cache.TTL, cfg.Cache.Timeout, logger)
		announceCtx, cancel := context.WithTimeout(ctx, cfg.Cache.Timeout)
		if err := cache.Announce(announceCtx, version); err == nil {
			logger.Info("status cache connected", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
		cancel()
	} else {
		logger.Info("status cache disabled")
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		logger.Info("device registry enabled", "driver", cfg.Storage.Driver)
	}

	if cfg.Dispatch.BaseURL == "" {
		logger.Warn("dispatch.base_url not set, readings will not be forwarded")
	}
	eng := engine.NewEngine(cfg, engine.Options{
		Logger:     logger,
		Collectors: collectors,
		Cache:      cache,
		Store:      store,
		Sender:     dispatch.NewClient(cfg.Dispatch, logger),
	})

	in := make(chan model.Advertisement, cfg.Ingest.ChannelBuffer)
	if err := eng.Start(ctx, in); err != nil {
		return err
	}
	defer func() {
		if err := eng.Stop(5 * time.Second); err != nil {
			logger.Warn("worker shutdown", "err", err)
		}
	}()

	ingest.StartREST(ctx, mgr, in, logger)
	ingest.StartKafka(ctx, mgr, ingest.NewParser(), in, logger)
	ingest.StartTCPStream(ctx, mgr, ingest.NewParser(), in, logger)
	ingest.StartFileTail(ctx, mgr, in, logger)
	if err := ingest.StartMQTT(ctx, mgr, in, logger); err != nil && ctx.Err() == nil {
		logger.Error("mqtt ingest unavailable", "err", err)
	}

	var loop *ingest.ScanLoop
	if cfg.Scan.Enabled {
		radio := rn.radio
		if radio == nil {
			radio = ingest.NewBluetoothRadio(cfg.Scan.Adapter)
		}
		loop = ingest.NewScanLoop(radio, cfg.Scan, in, logger)
	}

	api.Start(ctx, api.Options{
		Config:   mgr,
		Engine:   eng,
		Registry: store,
		Metrics:  collectors.Registry(),
		ScanState: func() string {
			if loop == nil {
				return "disabled"
			}
			return loop.State().String()
		},
		Logger:  logger,
		Version: version,
	})

	if mgr.Path() != "" {
		stop := make(chan struct{})
		defer close(stop)
		go mgr.Watch(3*time.Second, reloader(eng, cfg.Dispatch, logger), func(err error) {
			logger.Warn("config reload failed", "err", err)
		}, stop)
	}

	if loop != nil {
		if err := loop.Run(ctx); err != nil {
			if !remoteEnabled(cfg) {
				return err
			}
			logger.Error("ble scanning unavailable, continuing with remote sources", "err", err)
		}
	}
	<-ctx.Done()
	return nil
}

// reloader applies a reloaded config. The dispatcher is rebuilt only when its
// settings changed so its connection pool survives unrelated edits.
func reloader(eng *engine.Engine, initial config.DispatchConfig, logger *slog.Logger) func(*config.Config) {
	last := initial
	return func(cfg *config.Config) {
		eng.UpdateConfig(cfg)
		if cfg.Dispatch != last {
			eng.SetSender(dispatch.NewClient(cfg.Dispatch, logger))
			last = cfg.Dispatch
		}
		logger.Info("config reloaded",
			"min_interval", cfg.Debounce.MinInterval,
			"rapt_enabled", cfg.Dispatch.RaptEnabled,
			"base_url", cfg.Dispatch.BaseURL,
		)
	}
}

func remoteEnabled(cfg *config.Config) bool {
	in := cfg.Ingest
	return in.REST.Enabled || in.Kafka.Enabled || in.MQTT.Enabled || in.TCPStream.Enabled || in.FileTail.Enabled
}
