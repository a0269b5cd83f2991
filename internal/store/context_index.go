package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// ContextVectorDims is the width of feature-hashed tag vectors.
const ContextVectorDims = 64

const emptyContextFeature = "__no_context__"

// HashTags projects a tag set onto a unit vector by feature hashing, so
// cosine similarity approximates tag overlap.
func HashTags(tags []string) []float32 {
	tags = domain.NormalizeTags(tags)
	if len(tags) == 0 {
		tags = []string{emptyContextFeature}
	}

	v := make([]float32, ContextVectorDims)
	for _, t := range tags {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		v[sum%ContextVectorDims] += sign
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// PostgresContextIndex keeps one hashed vector per (fingerprint, context)
// pair and answers nearest-context queries with pgvector.
type PostgresContextIndex struct {
	db *pgxpool.Pool
}

func NewPostgresContextIndex(db *pgxpool.Pool) *PostgresContextIndex {
	return &PostgresContextIndex{db: db}
}

func (s *PostgresContextIndex) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS plan_contexts (
			fingerprint TEXT NOT NULL,
			tags TEXT[] NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (fingerprint, tags)
		)`, ContextVectorDims))
	if err != nil {
		return fmt.Errorf("create plan_contexts: %w", err)
	}
	return nil
}

func (s *PostgresContextIndex) Upsert(ctx context.Context, fingerprint string, tags []string) error {
	tags = domain.NormalizeTags(tags)
	embedding := pgvector.NewVector(HashTags(tags))

	_, err := s.db.Exec(ctx,
		`INSERT INTO plan_contexts (fingerprint, tags, embedding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint, tags) DO UPDATE SET updated_at = now()`,
		fingerprint, tags, embedding)
	return err
}

func (s *PostgresContextIndex) Nearest(ctx context.Context, tags []string, limit int) ([]domain.FingerprintMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding := pgvector.NewVector(HashTags(tags))

	rows, err := s.db.Query(ctx,
		`SELECT fingerprint, MAX(1 - (embedding <=> $1)) AS score
		 FROM plan_contexts
		 GROUP BY fingerprint
		 ORDER BY score DESC, fingerprint
		 LIMIT $2`,
		embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.FingerprintMatch
	for rows.Next() {
		var m domain.FingerprintMatch
		if err := rows.Scan(&m.Fingerprint, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
