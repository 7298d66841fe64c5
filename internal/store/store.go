// Package store persists batch results to PostgreSQL. Records are written
// in one transaction per batch: a summary row plus a bulk copy of the
// per-item records.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL-backed batch result repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const ddlBatches = `
	CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		item_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL
	);`

const ddlBatchRecords = `
	CREATE TABLE IF NOT EXISTS batch_records (
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		operation TEXT NOT NULL,
		payload JSONB,
		logs JSONB,
		error JSONB,
		PRIMARY KEY (batch_id, position)
	);`

// EnsureSchema creates the result tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{ddlBatches, ddlBatchRecords} {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to ensure result schema: %w", err)
		}
	}
	return nil
}

// SaveBatch writes one batch and all of its records transactionally. Either
// the whole batch lands or none of it does.
func (s *Store) SaveBatch(ctx context.Context, batch *schemas.BatchResult) error {
	if batch == nil {
		return errors.New("nil batch")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is
		// the expected no-op, not a failure worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	failed := 0
	for i := range batch.Records {
		if batch.Records[i].Failed() {
			failed++
		}
	}

	insertBatch := `
		INSERT INTO batches (id, started_at, finished_at, item_count, failed_count)
		VALUES ($1, $2, $3, $4, $5);`
	if _, err := tx.Exec(ctx, insertBatch,
		batch.ID,
		batch.StartedAt.UTC(),
		batch.FinishedAt.UTC(),
		len(batch.Records),
		failed,
	); err != nil {
		return fmt.Errorf("failed to insert batch row: %w", err)
	}

	if len(batch.Records) > 0 {
		if err := s.copyRecords(ctx, tx, batch.ID, batch.Records); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("Batch persisted",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("records", len(batch.Records)),
		zap.Int("failed", failed),
	)
	return nil
}

func (s *Store) copyRecords(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, records []schemas.OutputRecord) error {
	rows := make([][]any, len(records))
	for i, record := range records {
		payload, err := marshalNullable(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to serialize payload for record %d: %w", i, err)
		}
		logs, err := marshalNullable(record.Logs)
		if err != nil {
			return fmt.Errorf("failed to serialize logs for record %d: %w", i, err)
		}
		recErr, err := marshalNullable(record.Error)
		if err != nil {
			return fmt.Errorf("failed to serialize error for record %d: %w", i, err)
		}

		rows[i] = []any{batchID, i, string(record.Operation), payload, logs, recErr}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"batch_records"},
		[]string{"batch_id", "position", "operation", "payload", "logs", "error"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy batch records: %w", err)
	}
	if int(copyCount) != len(records) {
		return fmt.Errorf("mismatch in copied record count: expected %d, got %d", len(records), copyCount)
	}

	return nil
}

// marshalNullable serializes v for a JSONB column, mapping absent values to
// SQL NULL rather than the JSON text "null".
func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// BatchRecords loads the records of one stored batch in item order.
func (s *Store) BatchRecords(ctx context.Context, batchID uuid.UUID) ([]schemas.OutputRecord, error) {
	query := `
		SELECT operation, payload, logs, error
		FROM batch_records
		WHERE batch_id = $1
		ORDER BY position ASC;`
	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch records: %w", err)
	}
	defer rows.Close()

	var records []schemas.OutputRecord
	for rows.Next() {
		var (
			operation string
			payload   []byte
			logs      []byte
			recErr    []byte
		)
		if err := rows.Scan(&operation, &payload, &logs, &recErr); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		record := schemas.OutputRecord{Operation: schemas.OperationKind(operation)}
		if len(payload) > 0 {
			var value any
			if err := json.Unmarshal(payload, &value); err != nil {
				return nil, fmt.Errorf("failed to decode record payload: %w", err)
			}
			record.Payload = value
		}
		if len(logs) > 0 {
			if err := json.Unmarshal(logs, &record.Logs); err != nil {
				return nil, fmt.Errorf("failed to decode record logs: %w", err)
			}
		}
		if len(recErr) > 0 {
			record.Error = &schemas.RecordError{}
			if err := json.Unmarshal(recErr, record.Error); err != nil {
				return nil, fmt.Errorf("failed to decode record error: %w", err)
			}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}
