package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store interface using in-memory storage
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*window
	done chan struct{}
	once sync.Once
}

type window struct {
	count     int
	resetTime time.Time
}

// NewMemoryStore starts a janitor that evicts expired windows every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]*window),
		done: make(chan struct{}),
	}

	go store.cleanup(cleanupInterval)
	return store
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, w := range s.data {
				if !now.Before(w.resetTime) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[key]
	if !exists || !time.Now().Before(w.resetTime) {
		return 0, time.Time{}, nil
	}
	return w.count, w.resetTime, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, resetTime time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[key]
	if !exists || !time.Now().Before(w.resetTime) {
		s.data[key] = &window{count: 1, resetTime: resetTime}
		return 1, nil
	}
	w.count++
	return w.count, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
