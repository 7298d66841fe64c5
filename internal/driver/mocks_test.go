// File: internal/driver/mocks_test.go
package driver

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// -- Engine Mock --

// MockEngine mocks the engine.Engine interface.
type MockEngine struct {
	mock.Mock
}

// Open mocks session opening. Register a Run hook to capture OpenOptions
// (notably the log sink) before returning.
func (m *MockEngine) Open(ctx context.Context, opts engine.OpenOptions) (engine.Session, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(engine.Session), args.Error(1)
}

// -- Session Mock --

// MockSession mocks the engine.Session interface.
type MockSession struct {
	mock.Mock
}

// Navigate mocks the pre-dispatch page load.
func (m *MockSession) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// Act mocks single-instruction execution.
func (m *MockSession) Act(ctx context.Context, instruction string) (string, error) {
	args := m.Called(ctx, instruction)
	return args.String(0), args.Error(1)
}

// Extract mocks contract-shaped extraction.
func (m *MockSession) Extract(ctx context.Context, instruction string, contract *schema.Contract) (map[string]any, error) {
	args := m.Called(ctx, instruction, contract)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// Observe mocks candidate-action proposal.
func (m *MockSession) Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error) {
	args := m.Called(ctx, instruction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.ObservedAction), args.Error(1)
}

// RunAgent mocks the autonomous multi-step loop.
func (m *MockSession) RunAgent(ctx context.Context, task engine.AgentTask) (*engine.AgentResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.AgentResult), args.Error(1)
}

// Location mocks the current-URL probe.
func (m *MockSession) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Close mocks session teardown.
func (m *MockSession) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var (
	_ engine.Engine  = (*MockEngine)(nil)
	_ engine.Session = (*MockSession)(nil)
)
