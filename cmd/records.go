// File: cmd/records.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/observability"
	"github.com/pagepilot-ai/pagepilot/internal/store"
)

// resultStore is the subset of store.Store the commands consume. An interface
// so tests can inject a fake without a live database connection.
type resultStore interface {
	EnsureSchema(ctx context.Context) error
	SaveBatch(ctx context.Context, batch *schemas.BatchResult) error
	BatchRecords(ctx context.Context, batchID uuid.UUID) ([]schemas.OutputRecord, error)
}

// storeProvider creates a resultStore plus a cleanup function releasing its
// resources.
type storeProvider interface {
	Create(ctx context.Context, cfg *config.Config) (resultStore, func(), error)
}

// defaultStoreProvider connects to the real PostgreSQL database.
type defaultStoreProvider struct{}

func newStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (resultStore, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (PAGEPILOT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st, err := store.New(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize result store: %w", err)
	}

	return st, pool.Close, nil
}

// newRecordsCmd creates and configures the `records` command.
func newRecordsCmd(provider storeProvider) *cobra.Command {
	var (
		batchID    string
		outputPath string
	)

	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Load the stored records of a completed batch",
		Long: `Reads the per-item records of a previously persisted batch back from
PostgreSQL, in their original input order, and prints them as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			id, err := uuid.Parse(batchID)
			if err != nil {
				return fmt.Errorf("invalid batch id %q: %w", batchID, err)
			}

			st, cleanup, err := provider.Create(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if cleanup != nil {
				defer cleanup()
			}

			records, err := st.BatchRecords(ctx, id)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize records: %w", err)
			}
			if outputPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			if err := os.WriteFile(outputPath, append(out, '\n'), 0644); err != nil {
				return fmt.Errorf("failed to write records to %s: %w", outputPath, err)
			}
			return nil
		},
	}

	recordsCmd.Flags().StringVar(&batchID, "batch-id", "", "The ID of the batch to load (required)")
	_ = recordsCmd.MarkFlagRequired("batch-id")
	recordsCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, records print to stdout.")

	return recordsCmd
}
