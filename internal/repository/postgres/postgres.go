package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/repository/migrations"
)

const insertTrace = `INSERT INTO trace_log (
	id, request_id, kind, timestamp, method, url, status_code, error,
	headers, body, duration_ms, operation_name, query, variables
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresRepository{Pool: pool}, nil
}

func (r *PostgresRepository) SaveRecords(ctx context.Context, records []*model.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Int("count", len(records)).
		Msg("Saving trace records to database")

	batch := &pgx.Batch{}
	for _, rec := range records {
		headers, err := json.Marshal(rec.Headers)
		if err != nil {
			return fmt.Errorf("marshal headers of %s: %w", rec.ID, err)
		}
		batch.Queue(insertTrace,
			rec.ID, rec.RequestID, rec.Kind, rec.Timestamp, rec.Method, rec.URL,
			rec.StatusCode, nullString(rec.Error), headers, rec.Body, rec.DurationMs,
			rec.OperationName, rec.Query, nullJSON(rec.Variables),
		)
	}

	br := r.Pool.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to save trace records")
		return err
	}

	logger.Debug().Msg("Successfully saved trace records")
	return nil
}

func (r *PostgresRepository) Close() error {
	r.Pool.Close()
	return nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting PostgreSQL migrations")

	if _, err := r.Pool.Exec(ctx, migrations.PostgresSchema); err != nil {
		log.Error().Err(err).Msg("PostgreSQL migrations failed")
		return fmt.Errorf("migration error: %w", err)
	}

	log.Info().Msg("PostgreSQL migrations completed successfully")
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON keeps absent variables as SQL NULL instead of the JSON literal null.
func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
