// Package dispatch routes canonical generation requests to the configured
// upstream provider, normalizes the raw response, and records completed
// attempts in history.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/providers"
	"github.com/BaSui01/imageflow/providers/ark"
	"github.com/BaSui01/imageflow/providers/wanx"
	"github.com/BaSui01/imageflow/store"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ConfigSource is the read-only view of provider configurations the
// dispatcher needs. The dispatcher never mutates configs.
type ConfigSource interface {
	Get(ctx context.Context, id string) (*store.ProviderConfig, error)
	Active(ctx context.Context) (*store.ProviderConfig, error)
}

// Limits caps upstream pressure per provider kind.
type Limits struct {
	// MaxConcurrent is the number of simultaneous upstream calls per kind.
	// Zero means 8.
	MaxConcurrent int64
	// RequestsPerSecond throttles upstream call starts per kind. Zero
	// means unlimited.
	RequestsPerSecond float64
	Burst             int
}

type kindLimiter struct {
	sem *semaphore.Weighted
	rl  *rate.Limiter
}

// Options configures a Dispatcher.
type Options struct {
	// UpstreamTimeout bounds one upstream call. Zero means 120s.
	UpstreamTimeout time.Duration
	Limits          Limits
	Metrics         *metrics.Collector
}

// Dispatcher resolves a stored configuration to an adapter, invokes it, and
// turns the raw response into a GenerationResult. Its generation methods
// never return an error alongside the result: failures are encoded in the
// result itself.
type Dispatcher struct {
	configs  ConfigSource
	history  store.HistoryStore
	logger   *zap.Logger
	metrics  *metrics.Collector
	timeout  time.Duration
	limiters map[providers.Kind]*kindLimiter
}

// New creates a dispatcher over the given stores.
func New(configs ConfigSource, history store.HistoryStore, logger *zap.Logger, opts Options) *Dispatcher {
	timeout := opts.UpstreamTimeout
	if timeout == 0 {
		timeout = providers.DefaultUpstreamTimeout
	}

	maxConcurrent := opts.Limits.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	limiters := make(map[providers.Kind]*kindLimiter, 2)
	for _, kind := range []providers.Kind{providers.KindArk, providers.KindWanx} {
		limit := rate.Inf
		burst := 1
		if opts.Limits.RequestsPerSecond > 0 {
			limit = rate.Limit(opts.Limits.RequestsPerSecond)
			burst = opts.Limits.Burst
			if burst <= 0 {
				burst = 1
			}
		}
		limiters[kind] = &kindLimiter{
			sem: semaphore.NewWeighted(maxConcurrent),
			rl:  rate.NewLimiter(limit, burst),
		}
	}

	return &Dispatcher{
		configs:  configs,
		history:  history,
		logger:   logger,
		metrics:  opts.Metrics,
		timeout:  timeout,
		limiters: limiters,
	}
}

// ResolveAdapter loads the configuration (by id, or the active one when id
// is empty), requires it to be active, and builds the matching adapter.
func (d *Dispatcher) ResolveAdapter(ctx context.Context, configID string) (providers.ImageProvider, *store.ProviderConfig, error) {
	var (
		cfg *store.ProviderConfig
		err error
	)
	if configID != "" {
		cfg, err = d.configs.Get(ctx, configID)
	} else {
		cfg, err = d.configs.Active(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	if !cfg.IsActive {
		return nil, nil, types.NewError(types.ErrNotFound, "config "+cfg.ID+" is not active")
	}
	return d.AdapterFor(cfg), cfg, nil
}

// AdapterFor builds the adapter matching a configuration's endpoint, without
// requiring the config to be stored or active. The config test probe uses
// this directly.
func (d *Dispatcher) AdapterFor(cfg *store.ProviderConfig) providers.ImageProvider {
	switch providers.ClassifyEndpoint(cfg.URL) {
	case providers.KindWanx:
		return wanx.New(providers.WanxConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.URL,
			Model:   cfg.Model,
			Headers: cfg.HeaderMap(),
			Timeout: d.timeout,
		}, d.logger)
	default:
		return ark.New(providers.ArkConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.URL,
			Model:   cfg.Model,
			Headers: cfg.HeaderMap(),
			Timeout: d.timeout,
		}, d.logger)
	}
}

// Generate runs one request end to end and always returns a well-formed
// result. Upstream failures become a failed result with the error message;
// the only attempts that skip the history write are those that never
// completed because the caller went away.
func (d *Dispatcher) Generate(ctx context.Context, req *types.GenerationRequest) types.GenerationResult {
	adapter, cfg, err := d.ResolveAdapter(ctx, req.ConfigID)
	if err != nil {
		// Config missing or inactive: terminal, no history entry.
		return types.FailedResult(err.Error())
	}

	started := time.Now()
	result := d.invoke(ctx, adapter, req)

	d.metrics.RecordGeneration(adapter.Name(), string(req.Type), result.Success, time.Since(started), len(result.Images))
	d.logger.Info("generation completed",
		zap.String("provider", adapter.Name()),
		zap.String("config_id", cfg.ID),
		zap.String("type", string(req.Type)),
		zap.Bool("success", result.Success),
		zap.Int("images", len(result.Images)),
		zap.Duration("elapsed", time.Since(started)))

	// A cancelled caller means the attempt never completed from the
	// client's point of view; nothing is recorded then.
	if ctx.Err() == nil {
		d.recordHistory(req, result)
	}
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, adapter providers.ImageProvider, req *types.GenerationRequest) types.GenerationResult {
	lim := d.limiters[adapter.Kind()]

	if err := lim.rl.Wait(ctx); err != nil {
		return types.FailedResult("request cancelled while rate limited: " + err.Error())
	}
	if err := lim.sem.Acquire(ctx, 1); err != nil {
		return types.FailedResult("request cancelled while waiting for a provider slot: " + err.Error())
	}
	defer lim.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := adapter.Generate(callCtx, req)
	if err != nil {
		return types.FailedResult(err.Error())
	}

	// An unrecognized response shape is non-fatal: the caller gets a
	// successful result with no images.
	return types.GenerationResult{Success: true, Images: Normalize(raw)}
}

// NativeStream opens the provider's own streaming channel. Only adapters
// with native upstream streaming support it.
func (d *Dispatcher) NativeStream(ctx context.Context, req *types.GenerationRequest) (<-chan json.RawMessage, error) {
	adapter, _, err := d.ResolveAdapter(ctx, req.ConfigID)
	if err != nil {
		return nil, err
	}
	streamer, ok := adapter.(providers.StreamingProvider)
	if !ok {
		return nil, types.NewError(types.ErrValidation,
			"provider "+adapter.Name()+" does not support native streaming")
	}

	lim := d.limiters[adapter.Kind()]
	if err := lim.rl.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrInternalError, "rate limit wait cancelled").WithCause(err)
	}
	return streamer.GenerateStream(ctx, req)
}

func (d *Dispatcher) recordHistory(req *types.GenerationRequest, result types.GenerationResult) {
	if d.history == nil {
		return
	}

	images := make([]string, 0, len(result.Images))
	for _, ref := range result.Images {
		images = append(images, ref.String())
	}
	params, _ := json.Marshal(req.Params)

	// History writes ride on their own deadline so a finished generation
	// still gets recorded after the request context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &types.HistoryEntry{
		Prompt:  req.Prompt,
		Success: result.Success,
		Images:  images,
		Params:  params,
	}
	if err := d.history.Append(ctx, entry); err != nil {
		d.logger.Warn("history write failed", zap.Error(err))
	}
}
