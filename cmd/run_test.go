// File: cmd/run_test.go
package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// -- Fakes --

// fakeSession fulfills engine.Session without a browser.
type fakeSession struct {
	navigated   []string
	acts        []string
	extractData map[string]any
	closed      bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) Act(ctx context.Context, instruction string) (string, error) {
	s.acts = append(s.acts, instruction)
	return "done: " + instruction, nil
}

func (s *fakeSession) Extract(ctx context.Context, instruction string, contract *schema.Contract) (map[string]any, error) {
	return s.extractData, nil
}

func (s *fakeSession) Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error) {
	return []schemas.ObservedAction{{Description: "click go", Selector: "#go", Method: "click"}}, nil
}

func (s *fakeSession) RunAgent(ctx context.Context, task engine.AgentTask) (*engine.AgentResult, error) {
	return &engine.AgentResult{Success: true, Completed: true, Message: "all done"}, nil
}

func (s *fakeSession) Location(ctx context.Context) (string, error) {
	return "https://example.test/", nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

// fakeEngine records every Open and can fail at a chosen session index.
type fakeEngine struct {
	mu        sync.Mutex
	opts      []engine.OpenOptions
	sessions  []*fakeSession
	failIndex int
	failErr   error
}

func (e *fakeEngine) Open(ctx context.Context, opts engine.OpenOptions) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := len(e.opts)
	e.opts = append(e.opts, opts)
	if e.failErr != nil && idx == e.failIndex {
		return nil, e.failErr
	}
	s := &fakeSession{extractData: map[string]any{"title": "Hello"}}
	e.sessions = append(e.sessions, s)
	return s, nil
}

var _ engine.Engine = (*fakeEngine)(nil)

// installFakeEngine swaps the run command's engine factory for the fake.
func installFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	eng := &fakeEngine{}
	runEngineFactory = func(cfg *config.Config, logger *zap.Logger) engine.Engine { return eng }
	return eng
}

// fakeResultStore fulfills resultStore in memory.
type fakeResultStore struct {
	ensured bool
	saved   []*schemas.BatchResult
	records []schemas.OutputRecord
	loadErr error
}

func (s *fakeResultStore) EnsureSchema(ctx context.Context) error {
	s.ensured = true
	return nil
}

func (s *fakeResultStore) SaveBatch(ctx context.Context, batch *schemas.BatchResult) error {
	s.saved = append(s.saved, batch)
	return nil
}

func (s *fakeResultStore) BatchRecords(ctx context.Context, batchID uuid.UUID) ([]schemas.OutputRecord, error) {
	return s.records, s.loadErr
}

// fakeStoreProvider hands out the fake store without touching a database.
type fakeStoreProvider struct {
	store     *fakeResultStore
	createErr error
	cleanups  int
}

func (p *fakeStoreProvider) Create(ctx context.Context, cfg *config.Config) (resultStore, func(), error) {
	if p.createErr != nil {
		return nil, nil, p.createErr
	}
	return p.store, func() { p.cleanups++ }, nil
}

// -- Helpers --

func writeItemsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sampleItemsYAML = `- operation: act
  navigate_url: https://shop.test/cart
  instructions: |
    Click the login button
    Type admin into the user field
  model:
    namespace: openai
    name: gpt-4o-mini
    api_key: sk-item
- operation: extract
  instructions: pull the page title
  schema:
    source: fields
    fields:
      - name: title
        kind: string
  model:
    namespace: openai
    name: gpt-4o-mini
`

// -- Tests --

func TestRunCommandEndToEnd(t *testing.T) {
	resetForTest(t)
	eng := installFakeEngine(t)

	cfgPath := writeTestConfig(t, "llm:\n  api_key: sk-fallback\n")
	itemsPath := writeItemsFile(t, "items.yaml", sampleItemsYAML)
	outPath := filepath.Join(t.TempDir(), "batch.json")

	_, err := executeCommand(t, "run", "--config", cfgPath, "--items", itemsPath, "--output", outPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var batch schemas.BatchResult
	require.NoError(t, json.Unmarshal(raw, &batch))
	require.Len(t, batch.Records, 2)

	act := batch.Records[0]
	assert.Equal(t, schemas.OperationAct, act.Operation)
	assert.Nil(t, act.Error)
	payload, ok := act.Payload.(map[string]any)
	require.True(t, ok, "payload type %T", act.Payload)
	steps, ok := payload["steps"].([]any)
	require.True(t, ok, "steps type %T", payload["steps"])
	assert.Len(t, steps, 2)
	assert.Equal(t, "https://example.test/", payload["page_url"])

	extract := batch.Records[1]
	assert.Equal(t, schemas.OperationExtract, extract.Operation)
	assert.Nil(t, extract.Error)

	// One session per item, navigation only where configured.
	require.Len(t, eng.sessions, 2)
	assert.Equal(t, []string{"https://shop.test/cart"}, eng.sessions[0].navigated)
	assert.Empty(t, eng.sessions[1].navigated)
	assert.True(t, eng.sessions[0].closed)
	assert.True(t, eng.sessions[1].closed)

	// The per-item key wins; the config key fills the gap.
	require.Len(t, eng.opts, 2)
	assert.Equal(t, "sk-item", eng.opts[0].APIKey)
	assert.Equal(t, "sk-fallback", eng.opts[1].APIKey)
}

func TestRunCommandFailureIsolation(t *testing.T) {
	resetForTest(t)
	eng := installFakeEngine(t)
	eng.failIndex = 1
	eng.failErr = errors.New("browser pool exhausted")

	cfgPath := writeTestConfig(t, "")
	itemsPath := writeItemsFile(t, "items.yaml", sampleItemsYAML)
	outPath := filepath.Join(t.TempDir(), "batch.json")

	_, err := executeCommand(t, "run", "--config", cfgPath, "--items", itemsPath, "--output", outPath)
	require.NoError(t, err, "a failing item must not fail the command")

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var batch schemas.BatchResult
	require.NoError(t, json.Unmarshal(raw, &batch))
	require.Len(t, batch.Records, 2)

	assert.Nil(t, batch.Records[0].Error)
	require.NotNil(t, batch.Records[1].Error)
	assert.Equal(t, schemas.ErrKindConnection, batch.Records[1].Error.Kind)
	assert.Contains(t, batch.Records[1].Error.Message, "browser pool exhausted")
}

func TestRunCommandPersistsWithStoreFlag(t *testing.T) {
	resetForTest(t)
	installFakeEngine(t)
	provider := &fakeStoreProvider{store: &fakeResultStore{}}
	runStoreProvider = provider

	cfgPath := writeTestConfig(t, "")
	itemsPath := writeItemsFile(t, "items.yaml", sampleItemsYAML)
	outPath := filepath.Join(t.TempDir(), "batch.json")

	_, err := executeCommand(t, "run", "--config", cfgPath, "--items", itemsPath, "--output", outPath, "--store")
	require.NoError(t, err)

	assert.True(t, provider.store.ensured)
	require.Len(t, provider.store.saved, 1)
	assert.Len(t, provider.store.saved[0].Records, 2)
	assert.Equal(t, 1, provider.cleanups, "store cleanup should run exactly once")
}

func TestRunCommandStoreFlagWithoutDatabase(t *testing.T) {
	resetForTest(t)
	installFakeEngine(t)

	cfgPath := writeTestConfig(t, "")
	itemsPath := writeItemsFile(t, "items.yaml", sampleItemsYAML)
	outPath := filepath.Join(t.TempDir(), "batch.json")

	_, err := executeCommand(t, "run", "--config", cfgPath, "--items", itemsPath, "--output", outPath, "--store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is not configured")

	// The batch output was still written before persistence failed.
	_, statErr := os.Stat(outPath)
	assert.NoError(t, statErr)
}

func TestRunCommandRejectsEmptyItems(t *testing.T) {
	resetForTest(t)
	installFakeEngine(t)

	cfgPath := writeTestConfig(t, "")
	itemsPath := writeItemsFile(t, "items.yaml", "[]\n")

	_, err := executeCommand(t, "run", "--config", cfgPath, "--items", itemsPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no work items found")
}

func TestLoadItems(t *testing.T) {
	t.Run("parses a YAML list", func(t *testing.T) {
		path := writeItemsFile(t, "items.yaml", sampleItemsYAML)

		items, err := loadItems(path)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, schemas.OperationAct, items[0].Operation)
		assert.Equal(t, "https://shop.test/cart", items[0].NavigateURL)
		require.NotNil(t, items[1].Schema)
		assert.Equal(t, schemas.SchemaSourceFields, items[1].Schema.Source)
		require.Len(t, items[1].Schema.Fields, 1)
		assert.Equal(t, "title", items[1].Schema.Fields[0].Name)
		assert.Equal(t, schemas.FieldString, items[1].Schema.Fields[0].Kind)
	})

	t.Run("parses a JSON list", func(t *testing.T) {
		content := `[{"operation":"observe","instructions":"find the search box","model":{"namespace":"google","name":"gemini-2.0-flash"}}]`
		path := writeItemsFile(t, "items.json", content)

		items, err := loadItems(path)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, schemas.OperationObserve, items[0].Operation)
		assert.Equal(t, "google", items[0].Model.Namespace)
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		_, err := loadItems(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read items file")
	})

	t.Run("rejects malformed content", func(t *testing.T) {
		path := writeItemsFile(t, "items.yaml", "{not valid: [yaml")
		_, err := loadItems(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse items file")
	})
}

func TestApplyAPIKeyFallback(t *testing.T) {
	items := []schemas.ItemConfig{
		{Model: schemas.ModelConfig{APIKey: "sk-own"}},
		{Model: schemas.ModelConfig{}},
	}

	applyAPIKeyFallback(items, "sk-fallback")
	assert.Equal(t, "sk-own", items[0].Model.APIKey)
	assert.Equal(t, "sk-fallback", items[1].Model.APIKey)

	// An empty fallback changes nothing.
	items[1].Model.APIKey = ""
	applyAPIKeyFallback(items, "")
	assert.Empty(t, items[1].Model.APIKey)
}
