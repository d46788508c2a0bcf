package repository

import (
	"context"

	"github.com/tuncerburak97/gizli/internal/model"
)

// TraceRepository stores masked trace records for analytics.
type TraceRepository interface {
	SaveRecords(ctx context.Context, records []*model.TraceRecord) error
	Migrate(ctx context.Context) error
	Close() error
}

// Discard is the repository used when no database is configured.
type Discard struct{}

func (Discard) SaveRecords(context.Context, []*model.TraceRecord) error { return nil }
func (Discard) Migrate(context.Context) error                           { return nil }
func (Discard) Close() error                                            { return nil }
