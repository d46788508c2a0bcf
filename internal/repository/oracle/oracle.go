package oracle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "github.com/sijms/go-ora/v2"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/repository/migrations"
)

const insertTrace = `INSERT INTO trace_log (
	id, request_id, kind, timestamp, method, url, status_code, error,
	headers, body, duration_ms, operation_name, query, variables
) VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13, :14)`

// Errors raised when an object from a previous migration already exists.
var existsCodes = []string{"ORA-00955", "ORA-01408"}

type OracleRepository struct {
	DB *sql.DB
}

func NewOracleRepository(ctx context.Context, connStr string) (*OracleRepository, error) {
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Oracle: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach Oracle: %w", err)
	}

	return &OracleRepository{DB: db}, nil
}

func (r *OracleRepository) SaveRecords(ctx context.Context, records []*model.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTrace)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		headers, err := json.Marshal(rec.Headers)
		if err != nil {
			return fmt.Errorf("marshal headers of %s: %w", rec.ID, err)
		}

		var variables sql.NullString
		if len(rec.Variables) > 0 {
			variables = sql.NullString{String: string(rec.Variables), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			rec.ID, rec.RequestID, rec.Kind, rec.Timestamp, rec.Method, rec.URL,
			rec.StatusCode, rec.Error, string(headers), rec.Body, rec.DurationMs,
			rec.OperationName, rec.Query, variables,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OracleRepository) Close() error {
	return r.DB.Close()
}

func (r *OracleRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Oracle migrations")

	for _, stmt := range migrations.OracleStatements {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil && !alreadyExists(err) {
			log.Error().Err(err).Msg("Oracle migrations failed")
			return fmt.Errorf("migration error: %w", err)
		}
	}

	log.Info().Msg("Oracle migrations completed successfully")
	return nil
}

func alreadyExists(err error) bool {
	for _, code := range existsCodes {
		if strings.Contains(err.Error(), code) {
			return true
		}
	}
	return false
}
