// File: internal/engine/cdp/session.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
)

// Log stream levels. Lifecycle and usage messages sit at level zero so no
// verbosity setting can drop them; progress and diagnostic payloads require
// a chattier session.
const (
	levelLifecycle  = 0
	levelProgress   = 1
	levelDiagnostic = 2
)

// Session is one model-steered browser tab. The driver calls one operation
// at a time; the completion cache still carries its own lock because log
// listeners run on chromedp's goroutines.
type Session struct {
	id        string
	engine    *Engine
	model     llm.Identity
	client    llm.Client
	logger    *zap.Logger
	sink      func(schemas.LogMessage)
	verbosity int

	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	cacheMu sync.Mutex
	cache   map[uint64]string // nil when caching is off

	closeOnce sync.Once
}

var _ engine.Session = (*Session)(nil)

// emit pushes one message onto the session log stream. Messages chattier
// than the session's verbosity never reach the sink.
func (s *Session) emit(category, message string, level int, aux map[string]schemas.LogValue) {
	if s.sink == nil || level > s.verbosity {
		return
	}
	s.sink(schemas.LogMessage{
		Category:  category,
		Message:   message,
		Level:     level,
		Auxiliary: aux,
		Timestamp: time.Now().UTC(),
	})
}

// runActions executes chromedp actions against the session target, bounded
// by both the session lifetime and the caller's ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// combineContext derives a context from primary that is additionally
// canceled when secondary ends. chromedp connection values travel only on
// primary, so the derivation order matters.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// Navigate loads url and returns once the document itself has parsed. It
// does not wait for subresources; a page whose markup is in is ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	// Arm the listener before navigating so a fast parse cannot slip past.
	ready := make(chan struct{})
	var once sync.Once
	listenCtx, stopListening := context.WithCancel(opCtx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			once.Do(func() { close(ready) })
		}
	})

	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	select {
	case <-ready:
	case <-opCtx.Done():
		return fmt.Errorf("waiting for %s to parse: %w", url, opCtx.Err())
	}

	s.emit(schemas.LogCategoryAction, fmt.Sprintf("navigated to %s", url), levelProgress, nil)
	return nil
}

// Location reports the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading page location: %w", err)
	}
	return url, nil
}

// Close tears the session down: model client, browser target, allocator,
// then the engine slot. Subsequent calls are no-ops. The cancels are
// non-blocking, so ctx only scopes the call's intent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.emit(schemas.LogCategorySession, "session closed", levelLifecycle, nil)
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Model client close failed", zap.Error(err))
		}
		s.browserCancel()
		s.allocCancel()
		s.engine.sem.Release(1)
		s.logger.Info("Session closed")
	})
	return nil
}
