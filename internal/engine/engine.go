// Package engine drives readings through the pipeline: decode on the ingest
// goroutine, then cache write, registry update, debounce and forward on a
// per-device worker.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"brewble/internal/beacon"
	"brewble/internal/config"
	"brewble/internal/dispatchlog"
	"brewble/internal/metrics"
	"brewble/internal/model"
	"brewble/internal/status"
	"brewble/internal/storage"
	"brewble/internal/worker"
)

// maxFutureSkew is how far ahead of the local clock an advertisement
// timestamp may be before it is replaced by the receive time.
const maxFutureSkew = time.Minute

// Sender forwards one reading to the ingestion endpoint.
type Sender interface {
	Send(ctx context.Context, r model.Reading) (model.DispatchRecord, error)
}

type Options struct {
	Logger     *slog.Logger
	Devices    *metrics.Store
	Dispatches *dispatchlog.Store
	Collectors *metrics.Collectors
	Cache      *status.Writer
	Store      storage.Store
	Sender     Sender
}

type Engine struct {
	logger     *slog.Logger
	devices    *metrics.Store
	dispatches *dispatchlog.Store
	collectors *metrics.Collectors
	cache      *status.Writer
	store      storage.Store

	cfg     atomic.Value
	sender  atomic.Value
	running atomic.Bool

	ledger  *Ledger
	pool    *worker.Pool[model.Reading]
	started time.Time
	now     func() time.Time
}

type senderBox struct{ s Sender }

func NewEngine(cfg *config.Config, opts Options) *Engine {
	e := &Engine{
		logger:     opts.Logger,
		devices:    opts.Devices,
		dispatches: opts.Dispatches,
		collectors: opts.Collectors,
		cache:      opts.Cache,
		store:      opts.Store,
		ledger:     NewLedger(),
		started:    time.Now().UTC(),
		now:        time.Now,
	}
	if e.devices == nil {
		e.devices = metrics.NewStore(cfg.Devices.StoreLimit)
	}
	if e.dispatches == nil {
		e.dispatches = dispatchlog.NewStore(cfg.DispatchLog.StoreLimit)
	}
	e.cfg.Store(cfg)
	e.SetSender(opts.Sender)
	e.pool = worker.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize,
		func(r model.Reading) string { return r.DeviceKey },
		e.Handle,
	)
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (e *Engine) SetSender(s Sender) {
	e.sender.Store(senderBox{s})
}

func (e *Engine) currentSender() Sender {
	if v, ok := e.sender.Load().(senderBox); ok {
		return v.s
	}
	return nil
}

// Start launches the worker pool and consumes advertisements from in until
// ctx is cancelled.
func (e *Engine) Start(ctx context.Context, in <-chan model.Advertisement) error {
	if err := e.pool.Start(ctx); err != nil {
		return err
	}
	e.running.Store(true)
	go func() {
		for {
			select {
			case adv := <-in:
				e.ProcessEvent(adv)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop drains the worker queues.
func (e *Engine) Stop(timeout time.Duration) error {
	e.running.Store(false)
	return e.pool.Stop(timeout)
}

// ProcessEvent decodes adv and schedules its reading. Before Start the
// reading is handled inline.
func (e *Engine) ProcessEvent(adv model.Advertisement) (model.Reading, bool) {
	e.collectors.Advertisement(adv.Source)
	adv.Timestamp = clampTimestamp(adv.Timestamp, e.now().UTC(), maxFutureSkew)

	r, ok := beacon.Decode(adv)
	if !ok {
		if e.logger != nil {
			e.logger.Debug("advertisement not recognised", "address", adv.Address, "source", adv.Source)
		}
		return model.Reading{}, false
	}
	e.collectors.Decoded(r.Format)

	if !e.running.Load() {
		_ = e.Handle(context.Background(), r)
		return r, true
	}
	if err := e.pool.Submit(r); err != nil {
		e.collectors.QueueDropped()
		if e.logger != nil {
			e.logger.Warn("reading dropped", "device_key", r.DeviceKey, "format", r.Format, "err", err)
		}
	}
	return r, true
}

// Handle runs the I/O half of the pipeline for one reading. Cache and
// registry failures are logged and never stop the forward; the returned
// error only reports a failed forward.
func (e *Engine) Handle(ctx context.Context, r model.Reading) error {
	cfg := e.config()

	if err := e.cache.Write(ctx, r); err != nil {
		e.collectors.CacheError()
	}
	e.devices.Update(r)
	if e.store != nil {
		if err := e.store.UpsertDevice(ctx, r); err != nil && e.logger != nil {
			e.logger.Warn("device registry update failed", "device_key", r.DeviceKey, "err", err)
		}
	}

	if !forwardable(cfg, r) {
		return nil
	}
	if !e.ledger.Allow(r.DeviceKey, r.ReceivedAt, cfg.Debounce.MinInterval) {
		e.collectors.Suppressed(r.Kind)
		if e.logger != nil {
			e.logger.Debug("reading suppressed", "device_key", r.DeviceKey, "min_interval", cfg.Debounce.MinInterval)
		}
		return nil
	}

	sender := e.currentSender()
	if sender == nil {
		return nil
	}
	rec, err := sender.Send(ctx, r)
	e.dispatches.Add(rec)
	e.collectors.Dispatched(r.Kind, rec)
	if e.store != nil {
		if serr := e.store.SaveDispatch(ctx, rec); serr != nil && e.logger != nil {
			e.logger.Warn("dispatch history write failed", "device_key", r.DeviceKey, "err", serr)
		}
		if err == nil {
			if serr := e.store.MarkForwarded(ctx, r.DeviceKey, rec.Timestamp); serr != nil && e.logger != nil {
				e.logger.Warn("device registry update failed", "device_key", r.DeviceKey, "err", serr)
			}
		}
	}
	if err != nil && e.logger != nil {
		e.logger.Warn("reading not forwarded", "device_key", r.DeviceKey, "url", rec.URL, "err", err)
	}
	return err
}

func forwardable(cfg *config.Config, r model.Reading) bool {
	switch r.Kind {
	case model.KindChamber:
		return false
	case model.KindGravity, model.KindPressure:
	default:
		return false
	}
	if r.Format == model.FormatRaptV1 || r.Format == model.FormatRaptV2 {
		return cfg.Dispatch.RaptEnabled
	}
	return true
}

// ResetLedger forgets all forward times so every device forwards on its next
// reading.
func (e *Engine) ResetLedger() {
	e.ledger.Reset()
}

func (e *Engine) Devices() *metrics.Store {
	return e.devices
}

func (e *Engine) Dispatches() *dispatchlog.Store {
	return e.dispatches
}

type Status struct {
	StartedAt   time.Time        `json:"started_at"`
	Uptime      string           `json:"uptime"`
	Devices     int              `json:"devices"`
	LedgerSize  int              `json:"ledger_size"`
	MinInterval string           `json:"min_interval"`
	RaptEnabled bool             `json:"rapt_enabled"`
	CacheActive bool             `json:"cache_enabled"`
	Dispatches  map[string]int   `json:"dispatches"`
	Workers     worker.PoolStats `json:"workers"`
}

func (e *Engine) Status() Status {
	cfg := e.config()
	counts := make(map[string]int)
	for k, v := range e.dispatches.Counts() {
		counts[string(k)] = v
	}
	return Status{
		StartedAt:   e.started,
		Uptime:      time.Since(e.started).Truncate(time.Second).String(),
		Devices:     e.devices.Len(),
		LedgerSize:  e.ledger.Len(),
		MinInterval: cfg.Debounce.MinInterval.String(),
		RaptEnabled: cfg.Dispatch.RaptEnabled,
		CacheActive: e.cache.Enabled(),
		Dispatches:  counts,
		Workers:     e.pool.Stats(),
	}
}

func clampTimestamp(ts, now time.Time, maxFuture time.Duration) time.Time {
	if ts.IsZero() {
		return now
	}
	if maxFuture > 0 && ts.Sub(now) > maxFuture {
		return now
	}
	return ts
}
