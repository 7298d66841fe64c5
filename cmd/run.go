// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/driver"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/engine/cdp"
	"github.com/pagepilot-ai/pagepilot/internal/observability"
)

// persistTimeout bounds the post-run database write. It is detached from the
// run context so an interrupted batch still persists its records.
const persistTimeout = 30 * time.Second

// engineFactory builds the browser engine for a run. Injected so tests can
// substitute a fake engine instead of launching Chrome.
type engineFactory func(cfg *config.Config, logger *zap.Logger) engine.Engine

func defaultEngineFactory(cfg *config.Config, logger *zap.Logger) engine.Engine {
	return cdp.New(cfg.Engine, cfg.LLM, logger)
}

// Injection points, swapped out in tests.
var (
	runEngineFactory               = defaultEngineFactory
	runStoreProvider storeProvider = newStoreProvider()
)

// newRunCmd creates and configures the `run` command.
func newRunCmd(factory engineFactory, provider storeProvider) *cobra.Command {
	var (
		itemsPath  string
		outputPath string
		persist    bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch of browser work items",
		Long: `Reads a YAML or JSON file of work items, runs each one in its own browser
session in order, and emits one record per item as JSON. A failing item never
stops the batch; its record carries the classified error instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			items, err := loadItems(itemsPath)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no work items found in %s", itemsPath)
			}
			applyAPIKeyFallback(items, cfg.LLM.APIKey)

			drv := driver.New(factory(cfg, logger), cfg.Driver, logger)
			batch := drv.Run(ctx, items)

			if err := writeBatch(cmd.OutOrStdout(), batch, outputPath); err != nil {
				return err
			}

			if persist {
				if err := persistBatch(batch, cfg, provider, logger); err != nil {
					return err
				}
			}

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run aborted: %w", err)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&itemsPath, "items", "i", "", "Path to the YAML or JSON work items file (required). Use '-' for stdin.")
	_ = runCmd.MarkFlagRequired("items")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the batch result to this file instead of stdout.")
	runCmd.Flags().BoolVar(&persist, "store", false, "Persist the batch to PostgreSQL (requires database.url).")

	return runCmd
}

// loadItems reads and decodes the work items file. A path of "-" reads from
// stdin. Files ending in .json decode with the JSON parser; everything else
// goes through YAML, which accepts JSON input as well.
func loadItems(path string) ([]schemas.ItemConfig, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	var items []schemas.ItemConfig
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to parse items file %s: %w", path, err)
		}
		return items, nil
	}
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse items file %s: %w", path, err)
	}
	return items, nil
}

// applyAPIKeyFallback fills the config-level llm.api_key into items that do
// not carry their own key. Per-item keys always win.
func applyAPIKeyFallback(items []schemas.ItemConfig, key string) {
	if key == "" {
		return
	}
	for i := range items {
		if items[i].Model.APIKey == "" {
			items[i].Model.APIKey = key
		}
	}
}

// writeBatch serializes the batch result and writes it to the output path,
// or to w when no path is set.
func writeBatch(w io.Writer, batch *schemas.BatchResult, outputPath string) error {
	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize batch result: %w", err)
	}
	if outputPath == "" {
		fmt.Fprintln(w, string(out))
		return nil
	}
	if err := os.WriteFile(outputPath, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write batch result to %s: %w", outputPath, err)
	}
	return nil
}

// persistBatch saves the batch through the store provider on a context
// detached from the (possibly canceled) run context.
func persistBatch(batch *schemas.BatchResult, cfg *config.Config, provider storeProvider, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := st.SaveBatch(ctx, batch); err != nil {
		return err
	}
	logger.Info("Batch persisted", zap.String("batch_id", batch.ID.String()))
	return nil
}
