package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/timshannon/badgerhold/v4"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
)

// BadgerStore implements Store on a badgerhold database.
type BadgerStore struct {
	db       *badgerhold.Store
	embedder Embedder
	lambda   float64
	logger   zerolog.Logger
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the document store in dir. An empty dir
// opens an in-memory store.
func OpenBadgerStore(dir string, embedder Embedder, lambda float64, logger zerolog.Logger) (*BadgerStore, error) {
	options := badgerhold.DefaultOptions
	if dir == "" {
		options.InMemory = true
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		options.Dir = dir
		options.ValueDir = dir
	}
	options.Logger = nil
	// Metadata holds arbitrary JSON values.
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	logger.Debug().Str("path", dir).Msg("News store opened")

	return &BadgerStore{
		db:       db,
		embedder: embedder,
		lambda:   lambda,
		logger:   logger,
	}, nil
}

// Add embeds documents that have no embedding yet and upserts them.
func (s *BadgerStore) Add(ctx context.Context, docs []models.Document) error {
	var texts []string
	var pending []int
	for i := range docs {
		if len(docs[i].Embedding) == 0 {
			texts = append(texts, docs[i].Content)
			pending = append(pending, i)
		}
	}
	if len(texts) > 0 {
		if s.embedder == nil {
			return fmt.Errorf("no embedder configured")
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding documents: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for j, i := range pending {
			docs[i].Embedding = vectors[j]
		}
	}

	// IDs are written back so a retried Add rewrites the same keys.
	now := time.Now()
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].CreatedAt.IsZero() {
			docs[i].CreatedAt = now
		}
		doc := docs[i]
		if err := s.db.Upsert(doc.ID, &doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}
	return nil
}

// Search returns up to k documents chosen by max marginal relevance among the
// fetchK documents most similar to query.
func (s *BadgerStore) Search(ctx context.Context, query string, k, fetchK int) ([]models.Document, error) {
	if k <= 0 {
		k = DefaultK
	}
	if fetchK < k {
		fetchK = k
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	queryVec := vectors[0]

	var all []models.Document
	err = s.db.ForEach(nil, func(doc *models.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(doc.Embedding) == len(queryVec) {
			all = append(all, *doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	embeddings := make([][]float32, len(all))
	for i, d := range all {
		embeddings[i] = d.Embedding
	}
	candidates := topK(queryVec, embeddings, fetchK)

	candidateVecs := make([][]float32, len(candidates))
	for i, idx := range candidates {
		candidateVecs[i] = embeddings[idx]
	}
	picked := MaxMarginalRelevance(queryVec, candidateVecs, k, s.lambda)

	results := make([]models.Document, 0, len(picked))
	for _, p := range picked {
		results = append(results, publicCopy(all[candidates[p]]))
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *BadgerStore) Count() (int, error) {
	n, err := s.db.Count(&models.Document{}, nil)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Compact reclaims value log space left behind by re-ingested documents.
func (s *BadgerStore) Compact() error {
	for {
		err := s.db.Badger().RunValueLogGC(0.5)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode), errors.Is(err, badger.ErrRejected):
			return nil
		default:
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
