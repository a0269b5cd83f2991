package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CorruptRecordError describes a ledger entry that could not be replayed.
type CorruptRecordError struct {
	Line int
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt ledger record at line %d: %v", e.Line, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

var (
	ErrRecordMissingFingerprint = errors.New("record has no fingerprint")
	ErrRecordInvalidOutcome     = errors.New("record has an invalid outcome")
)

// LoadResult summarizes a ledger replay.
type LoadResult struct {
	Loaded   int                    `json:"loaded"`
	Skipped  int                    `json:"skipped"`
	Errors   []error                `json:"-"`
	Failures []domain.FailureRecord `json:"-"`
}

// EpisodicMemory keeps per-fingerprint aggregates over an append-only ledger.
// The ledger is the source of truth; aggregates are rebuilt by Load.
type EpisodicMemory struct {
	ledger       domain.LedgerStore
	contextIndex domain.ContextIndex
	logger       *zap.Logger

	HalfLife     time.Duration
	LearningRate float64
	Now          func() time.Time

	mu         sync.RWMutex
	aggregates map[string]*domain.MemoryAggregate
	lastLoad   LoadResult
}

func NewEpisodicMemory(ledger domain.LedgerStore, logger *zap.Logger) *EpisodicMemory {
	return &EpisodicMemory{
		ledger:       ledger,
		logger:       logger,
		HalfLife:     DefaultDecayHalfLife,
		LearningRate: DefaultLearningRate,
		Now:          time.Now,
		aggregates:   make(map[string]*domain.MemoryAggregate),
	}
}

// SetContextIndex attaches an optional index that is kept in sync on Record.
func (m *EpisodicMemory) SetContextIndex(idx domain.ContextIndex) {
	m.contextIndex = idx
}

// Load replays the whole ledger in timestamp order and rebuilds every
// aggregate. Malformed or oversized entries are skipped, logged and counted;
// only a failure to read the ledger itself aborts the load.
func (m *EpisodicMemory) Load(ctx context.Context) (*LoadResult, error) {
	result := &LoadResult{}
	var records []domain.EpisodicRecord

	line := 0
	for raw, err := range m.ledger.ReadAll(ctx) {
		if err != nil && !errors.Is(err, domain.ErrOversizedEntry) {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		line++

		decodeErr := err
		var rec domain.EpisodicRecord
		if decodeErr == nil {
			rec, decodeErr = decodeRecord(raw)
		}
		if decodeErr != nil {
			cre := &CorruptRecordError{Line: line, Err: decodeErr}
			result.Skipped++
			result.Errors = append(result.Errors, cre)
			m.logger.Warn("skipping corrupt ledger record",
				zap.Int("line", line),
				zap.Error(decodeErr))
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	aggregates := make(map[string]*domain.MemoryAggregate)
	for _, rec := range records {
		m.apply(aggregates, rec)
		if rec.Outcome == domain.OutcomeFailure && rec.FailedAction != "" {
			result.Failures = append(result.Failures, domain.FailureRecord{
				Action:    rec.FailedAction,
				Cause:     rec.FailureCause,
				Timestamp: rec.Timestamp,
			})
		}
	}
	result.Loaded = len(records)

	m.mu.Lock()
	m.aggregates = aggregates
	m.lastLoad = *result
	m.mu.Unlock()

	m.logger.Info("episodic memory loaded",
		zap.Int("records_loaded", result.Loaded),
		zap.Int("records_skipped", result.Skipped),
		zap.Int("fingerprints", len(aggregates)))

	return result, nil
}

func decodeRecord(raw []byte) (domain.EpisodicRecord, error) {
	var rec domain.EpisodicRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}
	if rec.Fingerprint == "" {
		return rec, ErrRecordMissingFingerprint
	}
	if !domain.ValidOutcomeType(string(rec.Outcome)) {
		return rec, fmt.Errorf("%w: %q", ErrRecordInvalidOutcome, rec.Outcome)
	}
	return rec, nil
}

// LastLoad returns the summary of the most recent Load.
func (m *EpisodicMemory) LastLoad() LoadResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoad
}

// Record appends the outcome to the ledger and then folds it into the
// in-memory aggregate for the plan's fingerprint.
func (m *EpisodicMemory) Record(ctx context.Context, ev domain.OutcomeEvent) (*domain.EpisodicRecord, error) {
	if ev.Plan.Fingerprint == "" {
		return nil, ErrRecordMissingFingerprint
	}
	if !domain.ValidOutcomeType(string(ev.Outcome)) {
		return nil, fmt.Errorf("%w: %q", ErrRecordInvalidOutcome, ev.Outcome)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = m.Now()
	}
	tags := domain.NormalizeTags(ev.ContextTags)

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := NeutralConfidence
	var elapsed time.Duration
	if agg, ok := m.aggregates[ev.Plan.Fingerprint]; ok {
		prev = agg.Confidence
		elapsed = ts.Sub(agg.LastSeen)
	}
	next := UpdateConfidence(prev, ev.Outcome, elapsed, m.HalfLife, m.LearningRate)

	rec := domain.EpisodicRecord{
		ID:              uuid.New(),
		Fingerprint:     ev.Plan.Fingerprint,
		Goal:            ev.Plan.Goal,
		ContextTags:     tags,
		Steps:           append([]string(nil), ev.Plan.Steps...),
		Outcome:         ev.Outcome,
		ScoreDelta:      next - prev,
		ConfidenceAfter: next,
		Timestamp:       ts,
		Notes:           ev.Notes,
		FailedAction:    ev.FailedAction,
		FailureCause:    ev.FailureCause,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := m.ledger.Append(ctx, line); err != nil {
		return nil, fmt.Errorf("append record: %w", err)
	}

	m.apply(m.aggregates, rec)

	m.logger.Debug("recorded plan outcome",
		zap.String("fingerprint", rec.Fingerprint),
		zap.String("outcome", string(rec.Outcome)),
		zap.Float64("old_confidence", prev),
		zap.Float64("new_confidence", next))

	if m.contextIndex != nil {
		if err := m.contextIndex.Upsert(ctx, rec.Fingerprint, tags); err != nil {
			m.logger.Warn("failed to update context index",
				zap.String("fingerprint", rec.Fingerprint),
				zap.Error(err))
		}
	}

	return &rec, nil
}

// apply folds one record into aggs. Confidence is recomputed from outcomes so
// a replay under new tuning reflects that tuning.
func (m *EpisodicMemory) apply(aggs map[string]*domain.MemoryAggregate, rec domain.EpisodicRecord) {
	agg, ok := aggs[rec.Fingerprint]
	if !ok {
		agg = &domain.MemoryAggregate{
			Fingerprint: rec.Fingerprint,
			Goal:        rec.Goal,
			Confidence:  NeutralConfidence,
			LastSeen:    rec.Timestamp,
		}
		aggs[rec.Fingerprint] = agg
	}

	elapsed := rec.Timestamp.Sub(agg.LastSeen)
	agg.Confidence = UpdateConfidence(agg.Confidence, rec.Outcome, elapsed, m.HalfLife, m.LearningRate)

	switch rec.Outcome {
	case domain.OutcomeSuccess:
		agg.SuccessCount++
	case domain.OutcomeFailure:
		agg.FailureCount++
	case domain.OutcomePartial:
		agg.PartialCount++
	}
	if rec.Timestamp.After(agg.LastSeen) {
		agg.LastSeen = rec.Timestamp
	}

	tags := domain.NormalizeTags(rec.ContextTags)
	for _, h := range agg.ContextHistory {
		if Similarity(h, tags) == 1.0 {
			return
		}
	}
	agg.ContextHistory = append(agg.ContextHistory, tags)
}

// Evidence returns the current estimate for fingerprint as seen from a
// situation described by contextTags. Unseen fingerprints get the neutral
// prior rather than an error.
func (m *EpisodicMemory) Evidence(fingerprint string, contextTags []string) domain.MemoryEvidence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg, ok := m.aggregates[fingerprint]
	if !ok {
		return domain.MemoryEvidence{
			Fingerprint:   fingerprint,
			Confidence:    NeutralConfidence,
			RecencyWeight: NeutralRecencyWeight,
		}
	}

	return domain.MemoryEvidence{
		Fingerprint:         fingerprint,
		Confidence:          agg.Confidence,
		SuccessCount:        agg.SuccessCount,
		FailureCount:        agg.FailureCount,
		PartialCount:        agg.PartialCount,
		RecencyWeight:       RecencyWeight(m.Now().Sub(agg.LastSeen), m.HalfLife),
		SimilarContextScore: MaxSimilarity(domain.NormalizeTags(contextTags), agg.ContextHistory),
		Seen:                true,
	}
}

// Aggregate returns a copy of the aggregate for fingerprint.
func (m *EpisodicMemory) Aggregate(fingerprint string) (domain.MemoryAggregate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg, ok := m.aggregates[fingerprint]
	if !ok {
		return domain.MemoryAggregate{}, false
	}
	return copyAggregate(agg), true
}

// Snapshot returns copies of all aggregates ordered by fingerprint.
func (m *EpisodicMemory) Snapshot() []domain.MemoryAggregate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.MemoryAggregate, 0, len(m.aggregates))
	for _, agg := range m.aggregates {
		out = append(out, copyAggregate(agg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// SimilarFingerprints ranks known fingerprints by their best context
// similarity to tags.
func (m *EpisodicMemory) SimilarFingerprints(tags []string, limit int) []domain.FingerprintMatch {
	tags = domain.NormalizeTags(tags)

	m.mu.RLock()
	matches := make([]domain.FingerprintMatch, 0, len(m.aggregates))
	for fp, agg := range m.aggregates {
		if s := MaxSimilarity(tags, agg.ContextHistory); s > 0 {
			matches = append(matches, domain.FingerprintMatch{Fingerprint: fp, Score: s})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Fingerprint < matches[j].Fingerprint
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func copyAggregate(agg *domain.MemoryAggregate) domain.MemoryAggregate {
	c := *agg
	c.ContextHistory = make([][]string, len(agg.ContextHistory))
	for i, h := range agg.ContextHistory {
		c.ContextHistory[i] = append([]string(nil), h...)
	}
	return c
}
