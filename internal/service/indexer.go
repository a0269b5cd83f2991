package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

const defaultIndexerInterval = 15 * time.Minute

// ContextIndexer periodically pushes every known (fingerprint, context)
// pair into a ContextIndex. Record already upserts as it goes; this catches
// pairs loaded from the ledger and upserts that failed.
type ContextIndexer struct {
	memory *EpisodicMemory
	index  domain.ContextIndex
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewContextIndexer(memory *EpisodicMemory, index domain.ContextIndex, logger *zap.Logger) *ContextIndexer {
	return &ContextIndexer{
		memory:   memory,
		index:    index,
		logger:   logger,
		interval: defaultIndexerInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ContextIndexer) SetInterval(d time.Duration) {
	s.interval = d
}

// Start syncs once and then on a periodic schedule in a background goroutine.
func (s *ContextIndexer) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("context indexer started", zap.Duration("interval", s.interval))
		s.tick()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				s.logger.Info("context indexer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the indexer.
func (s *ContextIndexer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ContextIndexer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Sync(ctx); err != nil {
		s.logger.Error("context index sync failed", zap.Error(err))
	}
}

// Sync upserts every context recorded in memory and returns how many pairs
// were written. It stops at the first error.
func (s *ContextIndexer) Sync(ctx context.Context) (int, error) {
	n := 0
	for _, agg := range s.memory.Snapshot() {
		for _, tags := range agg.ContextHistory {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			if err := s.index.Upsert(ctx, agg.Fingerprint, tags); err != nil {
				return n, err
			}
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("context index synced", zap.Int("pairs", n))
	}
	return n, nil
}
