// File: internal/engine/cdp/engine.go

// Package cdp implements the engine contract over the Chrome DevTools
// Protocol via chromedp. One Engine serves many sessions; a weighted
// semaphore caps how many browser sessions are live at once.
package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
)

// Engine opens chromedp-backed sessions. Safe for concurrent use.
type Engine struct {
	cfg    config.EngineConfig
	llmCfg config.LLMConfig
	logger *zap.Logger
	sem    *semaphore.Weighted
}

var _ engine.Engine = (*Engine)(nil)

// New builds an Engine from configuration. A MaxSessions below one is
// treated as one so the semaphore can never be constructed unusable.
func New(cfg config.EngineConfig, llmCfg config.LLMConfig, logger *zap.Logger) *Engine {
	slots := cfg.MaxSessions
	if slots < 1 {
		slots = 1
	}
	return &Engine{
		cfg:    cfg,
		llmCfg: llmCfg,
		logger: logger.Named("engine.cdp"),
		sem:    semaphore.NewWeighted(int64(slots)),
	}
}

// Open acquires a session slot, stands up (or attaches to) a browser and
// builds the model client. Every failure path releases the slot and tears
// down whatever was already created.
func (e *Engine) Open(ctx context.Context, opts engine.OpenOptions) (engine.Session, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a session slot: %w", err)
	}

	// The allocator context owns the browser process and must outlive this
	// call, so it hangs off Background rather than the caller's ctx.
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.ConnectURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.ConnectURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	teardown := func() {
		browserCancel()
		allocCancel()
		e.sem.Release(1)
	}

	// The first Run establishes the browser target. Bound it by the
	// caller's ctx without losing the chromedp connection values.
	establishCtx, establishCancel := combineContext(browserCtx, ctx)
	err := chromedp.Run(establishCtx)
	establishCancel()
	if err != nil {
		teardown()
		if opts.ConnectURL != "" {
			return nil, fmt.Errorf("attaching to browser at %s: %w", opts.ConnectURL, err)
		}
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	client, err := llm.NewClient(ctx, opts.Model, opts.APIKey, e.llmCfg, e.logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("building model client: %w", err)
	}

	verbosity := opts.Verbosity
	if verbosity < 0 {
		verbosity = 0
	}

	id := uuid.New().String()
	s := &Session{
		id:            id,
		engine:        e,
		model:         opts.Model,
		client:        client,
		logger:        e.logger.Named("session").With(zap.String("session_id", id)),
		sink:          opts.LogSink,
		verbosity:     verbosity,
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}
	if opts.EnableCaching {
		s.cache = make(map[uint64]string)
	}

	s.logger.Info("Session opened",
		zap.String("model", opts.Model.String()),
		zap.Bool("remote", opts.ConnectURL != ""),
		zap.Bool("caching", opts.EnableCaching),
	)
	s.emit(schemas.LogCategorySession, fmt.Sprintf("session opened against model %s", opts.Model), levelLifecycle, nil)
	return s, nil
}

// allocatorOptions translates engine configuration into exec allocator
// options for a locally launched browser. Later options override the
// chromedp defaults, so a false headless flag genuinely disables it.
func (e *Engine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("disable-gpu", e.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	for _, arg := range e.cfg.BrowserArgs {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}
