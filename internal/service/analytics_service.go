package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gizli/internal/config"
	"github.com/tuncerburak97/gizli/internal/masking"
	"github.com/tuncerburak97/gizli/internal/metrics"
	"github.com/tuncerburak97/gizli/internal/model"
	"github.com/tuncerburak97/gizli/internal/privacy"
	"github.com/tuncerburak97/gizli/internal/repository"
	"github.com/tuncerburak97/gizli/internal/transform"
	"go.uber.org/zap"
)

const sinkAnalytics = "analytics"

var (
	ErrQueueFull     = errors.New("analytics queue is full")
	ErrServiceClosed = errors.New("analytics service is shut down")
)

// AnalyticsService masks entries with its own policy and writes them to the
// repository in batches. Only masked records are ever queued.
type AnalyticsService struct {
	repo          repository.TraceRepository
	policy        privacy.Policy
	scripts       *transform.Engine
	queue         chan *model.TraceRecord
	workerCount   int
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
	done          chan struct{}
	mu            sync.RWMutex
	closed        bool
	metrics       *metrics.MetricsCollector
	logger        *zap.Logger
}

func NewAnalyticsService(
	repo repository.TraceRepository,
	policy privacy.Policy,
	scripts *transform.Engine,
	collector *metrics.MetricsCollector,
	logger *zap.Logger,
	cfg config.AnalyticsConfig,
) *AnalyticsService {
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = 100 * time.Millisecond
	}
	s := &AnalyticsService{
		repo:          repo,
		policy:        policy,
		scripts:       scripts,
		queue:         make(chan *model.TraceRecord, cfg.BufferSize),
		workerCount:   cfg.Workers,
		batchSize:     cfg.BatchSize,
		flushInterval: flush,
		done:          make(chan struct{}),
		metrics:       collector,
		logger:        logger,
	}

	s.startWorkers()
	return s
}

func (s *AnalyticsService) Policy() privacy.Policy {
	return s.policy
}

func (s *AnalyticsService) startWorkers() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.processRecords(i)
	}

	go s.monitorQueue()
}

// Track masks entry and queues it for storage. It never blocks: a full queue
// drops the entry and returns ErrQueueFull.
func (s *AnalyticsService) Track(entry model.TraceEntry) error {
	start := time.Now()
	masked := masking.Mask(entry, s.policy)
	s.metrics.ObserveMask(sinkAnalytics, entry.KindName(), s.policy.Level.String(), time.Since(start),
		masking.BodyFellBack(entry.Body, masked.Body, s.policy))

	masked, keep := s.scripts.Apply(masked)
	if !keep {
		s.metrics.IncDropped(sinkAnalytics, "script")
		return nil
	}

	rec, err := model.NewTraceRecord(masked)
	if err != nil {
		s.metrics.IncDropped(sinkAnalytics, "encode")
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.metrics.IncDropped(sinkAnalytics, "shutdown")
		return ErrServiceClosed
	}

	select {
	case s.queue <- rec:
		return nil
	default:
		s.metrics.IncDropped(sinkAnalytics, "queue_full")
		return ErrQueueFull
	}
}

func (s *AnalyticsService) processRecords(workerID int) {
	defer s.wg.Done()

	batch := make([]*model.TraceRecord, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				if len(batch) > 0 {
					s.saveBatch(workerID, batch)
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				s.saveBatch(workerID, batch)
				batch = make([]*model.TraceRecord, 0, s.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.saveBatch(workerID, batch)
				batch = make([]*model.TraceRecord, 0, s.batchSize)
			}
		}
	}
}

func (s *AnalyticsService) saveBatch(workerID int, batch []*model.TraceRecord) {
	start := time.Now()
	ctx := log.Logger.WithContext(context.Background())
	if err := s.repo.SaveRecords(ctx, batch); err != nil {
		s.metrics.LogError("batch_save", err)
		s.logger.Error("Failed to save trace records batch",
			zap.Error(err),
			zap.Int("worker", workerID),
			zap.Int("batch_size", len(batch)),
		)
	}
	s.metrics.ObserveBatchSave(sinkAnalytics, time.Since(start), len(batch))
}

// Shutdown stops intake, flushes queued records and closes the repository.
// It returns ctx.Err() if the workers do not finish in time.
func (s *AnalyticsService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	close(s.done)
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.repo.Close()
}

func (s *AnalyticsService) monitorQueue() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.metrics.ObserveQueueSize(sinkAnalytics, float64(len(s.queue)))
		}
	}
}
