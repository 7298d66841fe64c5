// File: internal/driver/driver.go

// Package driver runs configured work items against a browser engine, one
// session per item, and folds every outcome into an output record. It owns
// session lifecycle and all timeouts; the engine underneath adds none.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
	"github.com/pagepilot-ai/pagepilot/internal/sessionlog"
)

// Driver executes work items sequentially. Each item gets its own session
// and its own log collector; no state crosses item boundaries.
type Driver struct {
	engine engine.Engine
	cfg    config.DriverConfig
	log    *zap.Logger
}

// New builds a driver around a browser engine.
func New(eng engine.Engine, cfg config.DriverConfig, logger *zap.Logger) *Driver {
	return &Driver{
		engine: eng,
		cfg:    cfg,
		log:    logger.With(zap.String("component", "driver")),
	}
}

// Run processes items strictly in input order and returns one record per
// item. An item failure never stops the batch. Cancelling ctx stops engine
// work, but the remaining items still yield error records so the output
// stays index-aligned with the input.
func (d *Driver) Run(ctx context.Context, items []schemas.ItemConfig) *schemas.BatchResult {
	batch := &schemas.BatchResult{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Records:   make([]schemas.OutputRecord, 0, len(items)),
	}
	d.log.Info("Batch started",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("items", len(items)),
	)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			batch.Records = append(batch.Records, schemas.OutputRecord{
				Operation: item.Operation,
				Error:     classify(fmt.Errorf("batch canceled before item %d: %w", i+1, err)),
			})
			continue
		}
		batch.Records = append(batch.Records, d.RunItem(ctx, item))
	}

	batch.FinishedAt = time.Now().UTC()

	failed := 0
	for i := range batch.Records {
		if batch.Records[i].Failed() {
			failed++
		}
	}
	d.log.Info("Batch finished",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("items", len(items)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", batch.FinishedAt.Sub(batch.StartedAt)),
	)
	return batch
}

// RunItem runs one item through its own session and reports the outcome as
// a record. Errors and recovered panics are folded into the record; RunItem
// itself never fails.
func (d *Driver) RunItem(ctx context.Context, item schemas.ItemConfig) schemas.OutputRecord {
	collector := sessionlog.NewCollector()
	payload, err := d.runSession(ctx, item, collector)

	record := schemas.OutputRecord{Operation: item.Operation, Payload: payload}
	if err != nil {
		record.Error = classify(err)
	}
	if item.CaptureLogs {
		record.Logs = sessionlog.FilterForOutput(collector.Messages())
	}
	return record
}

// runSession owns one item's session lifecycle: open, optional navigation,
// exactly one dispatched operation, close. The collector is always attached
// as the session's log sink; agent usage aggregation reads the stream even
// when the item does not surface logs.
func (d *Driver) runSession(ctx context.Context, item schemas.ItemConfig, collector *sessionlog.Collector) (any, error) {
	id := llm.Derive(item.Model.Namespace, item.Model.Name)
	log := d.log.With(
		zap.String("operation", string(item.Operation)),
		zap.String("model", id.String()),
	)

	openCtx, cancelOpen := phaseContext(ctx, d.cfg.ConnectTimeout)
	session, err := d.engine.Open(openCtx, engine.OpenOptions{
		Model:         id,
		APIKey:        item.Model.APIKey,
		ConnectURL:    item.ConnectURL,
		EnableCaching: item.EnableCaching,
		Verbosity:     item.Verbosity,
		LogSink:       collector.Append,
	})
	cancelOpen()
	if err != nil {
		return nil, &ConnectionError{URL: item.ConnectURL, Err: err}
	}

	// The session closes on every exit path, bounded by its own timeout and
	// detached from ctx so a canceled batch still tears down cleanly. A
	// close failure never masks the item's result.
	defer func() {
		closeCtx, cancelClose := phaseContext(context.Background(), d.cfg.CloseTimeout)
		defer cancelClose()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("Session close failed", zap.Error(err))
		}
	}()

	if item.NavigateURL != "" {
		navCtx, cancelNav := phaseContext(ctx, d.cfg.NavigationTimeout)
		err := session.Navigate(navCtx, item.NavigateURL)
		cancelNav()
		if err != nil {
			return nil, &NavigationError{URL: item.NavigateURL, Err: err}
		}
	}

	timeout := d.cfg.OperationTimeout
	if item.Operation == schemas.OperationAgent {
		timeout = d.cfg.AgentTimeout
	}
	opCtx, cancelOp := phaseContext(ctx, timeout)
	defer cancelOp()

	return d.dispatch(opCtx, session, item, collector)
}

// dispatch routes the item to exactly one session operation. A panic inside
// the engine is recovered here so a single item cannot take down the batch.
func (d *Driver) dispatch(ctx context.Context, session engine.Session, item schemas.ItemConfig, collector *sessionlog.Collector) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Operation panicked",
				zap.String("operation", string(item.Operation)),
				zap.Any("panicValue", r),
				zap.String("stack", string(debug.Stack())),
			)
			payload = nil
			err = &OperationError{Op: item.Operation, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch item.Operation {
	case schemas.OperationAct:
		return d.runAct(ctx, session, item)
	case schemas.OperationExtract:
		return d.runExtract(ctx, session, item)
	case schemas.OperationObserve:
		return d.runObserve(ctx, session, item)
	case schemas.OperationAgent:
		return d.runAgent(ctx, session, item, collector)
	default:
		return nil, &UnsupportedOperationError{Op: item.Operation}
	}
}

// runAct executes the instruction block line by line, in order, failing
// fast: later lines assume the page state the earlier ones left behind.
func (d *Driver) runAct(ctx context.Context, session engine.Session, item schemas.ItemConfig) (any, error) {
	lines := instructionLines(item.Instructions)
	if len(lines) == 0 {
		return nil, &OperationError{Op: item.Operation, Err: errors.New("no instructions supplied")}
	}

	payload := schemas.ActPayload{Steps: make([]schemas.ActStep, 0, len(lines))}
	for _, line := range lines {
		result, err := session.Act(ctx, line)
		if err != nil {
			return nil, &OperationError{Op: item.Operation, Err: fmt.Errorf("instruction %q: %w", line, err)}
		}
		payload.Steps = append(payload.Steps, schemas.ActStep{Instruction: line, Result: result})
	}

	if url, err := session.Location(ctx); err == nil {
		payload.PageURL = url
	} else {
		d.log.Warn("Page location unavailable after act", zap.Error(err))
	}
	return payload, nil
}

// runExtract resolves the item's schema descriptor and pulls a matching
// structured value off the page. The engine's value is not re-validated.
func (d *Driver) runExtract(ctx context.Context, session engine.Session, item schemas.ItemConfig) (any, error) {
	instruction := firstInstruction(item.Instructions)
	if instruction == "" {
		return nil, &OperationError{Op: item.Operation, Err: errors.New("no instructions supplied")}
	}

	contract, err := schema.Resolve(item.Schema)
	if err != nil {
		return nil, err
	}

	data, err := session.Extract(ctx, instruction, contract)
	if err != nil {
		return nil, &OperationError{Op: item.Operation, Err: err}
	}
	return schemas.ExtractPayload{Data: data}, nil
}

// runObserve asks the session for candidate actions and reports the plan
// verbatim.
func (d *Driver) runObserve(ctx context.Context, session engine.Session, item schemas.ItemConfig) (any, error) {
	instruction := firstInstruction(item.Instructions)
	if instruction == "" {
		return nil, &OperationError{Op: item.Operation, Err: errors.New("no instructions supplied")}
	}

	actions, err := session.Observe(ctx, instruction)
	if err != nil {
		return nil, &OperationError{Op: item.Operation, Err: err}
	}
	return schemas.ObservePayload{Actions: actions}, nil
}

// runAgent hands the whole instruction block to the autonomous loop and
// reduces the run to its output form: per-action diagnostics beyond the
// four record fields are dropped, and token usage is aggregated from the
// session's captured log stream.
func (d *Driver) runAgent(ctx context.Context, session engine.Session, item schemas.ItemConfig, collector *sessionlog.Collector) (any, error) {
	task := strings.TrimSpace(item.Instructions)
	if task == "" {
		return nil, &OperationError{Op: item.Operation, Err: errors.New("no task supplied")}
	}

	result, err := session.RunAgent(ctx, engine.AgentTask{
		Task:           task,
		MaxSteps:       item.MaxSteps,
		Context:        item.AgentContext,
		AutoScreenshot: true,
	})
	if err != nil {
		return nil, &OperationError{Op: item.Operation, Err: err}
	}

	actions := make([]schemas.ActionRecord, 0, len(result.Actions))
	for _, a := range result.Actions {
		actions = append(actions, schemas.ActionRecord{
			Type:          a.Type,
			Reasoning:     a.Reasoning,
			Parameters:    a.Parameters,
			TaskCompleted: a.TaskCompleted,
		})
	}

	payload := schemas.AgentPayload{
		Success:     result.Success,
		Completed:   result.Completed,
		Message:     result.Message,
		ActionCount: len(actions),
		Actions:     actions,
		Usage:       sessionlog.AggregateUsage(collector.Messages()),
	}
	if url, err := session.Location(ctx); err == nil {
		payload.PageURL = url
	} else {
		d.log.Warn("Page location unavailable after agent run", zap.Error(err))
	}
	return payload, nil
}

// classify folds an item error into its serialized record form.
func classify(err error) *schemas.RecordError {
	kind := schemas.ErrKindOperation

	var (
		schemaErr      *schema.SchemaError
		connectErr     *ConnectionError
		navigateErr    *NavigationError
		unsupportedErr *UnsupportedOperationError
	)
	switch {
	case errors.As(err, &schemaErr):
		kind = schemas.ErrKindSchema
	case errors.As(err, &connectErr):
		kind = schemas.ErrKindConnection
	case errors.As(err, &navigateErr):
		kind = schemas.ErrKindNavigation
	case errors.As(err, &unsupportedErr):
		kind = schemas.ErrKindUnsupported
	}

	return &schemas.RecordError{Kind: kind, Message: err.Error()}
}

// phaseContext bounds one phase of an item run. A non-positive timeout
// leaves only the parent's bound in place.
func phaseContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// instructionLines splits an instruction block into trimmed, non-empty
// lines.
func instructionLines(block string) []string {
	raw := strings.Split(block, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// firstInstruction returns the first non-empty line of the block, or "".
func firstInstruction(block string) string {
	lines := instructionLines(block)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
