package couchbase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/repository/migrations"
)

type CouchbaseRepository struct {
	Cluster *gocb.Cluster
	Bucket  *gocb.Bucket
}

func NewCouchbaseRepository(connStr, bucketName, username, password string) (*CouchbaseRepository, error) {
	cluster, err := gocb.Connect(
		connStr,
		gocb.ClusterOptions{
			Username: username,
			Password: password,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Couchbase: %w", err)
	}

	bucket := cluster.Bucket(bucketName)
	if err := bucket.WaitUntilReady(5*time.Second, nil); err != nil {
		return nil, fmt.Errorf("bucket not ready: %w", err)
	}

	return &CouchbaseRepository{
		Cluster: cluster,
		Bucket:  bucket,
	}, nil
}

// DocumentKey is the key a trace record is stored under.
func DocumentKey(rec *model.TraceRecord) string {
	return "trace_" + rec.ID
}

func (r *CouchbaseRepository) SaveRecords(ctx context.Context, records []*model.TraceRecord) error {
	collection := r.Bucket.DefaultCollection()
	for _, rec := range records {
		_, err := collection.Upsert(DocumentKey(rec), rec, &gocb.UpsertOptions{Context: ctx})
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (r *CouchbaseRepository) Close() error {
	return r.Cluster.Close(nil)
}

func (r *CouchbaseRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Couchbase migrations")

	for _, indexQuery := range migrations.GetCouchbaseIndexes(r.Bucket.Name()) {
		_, err := r.Cluster.Query(indexQuery, &gocb.QueryOptions{Context: ctx})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			log.Error().Err(err).Str("query", indexQuery).Msg("Failed to create Couchbase index")
			return fmt.Errorf("index creation error: %w", err)
		}
	}

	log.Info().Msg("Couchbase migrations completed successfully")
	return nil
}
