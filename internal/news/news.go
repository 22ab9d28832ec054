// Package news stores embedded news articles and retrieves them with
// max-marginal-relevance search.
package news

import (
	"context"

	"marketminds/internal/models"
)

// Default search sizes.
const (
	DefaultK      = 4
	DefaultFetchK = 10
	DefaultLambda = 0.5
)

// embeddingKey is the metadata key never returned to callers.
const embeddingKey = "embedding"

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher retrieves documents relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k, fetchK int) ([]models.Document, error)
}

// Store is a document store with embedding search.
type Store interface {
	Searcher
	Add(ctx context.Context, docs []models.Document) error
	Count() (int, error)
	Close() error
}

// publicCopy returns doc without its embedding or any embedding metadata.
func publicCopy(doc models.Document) models.Document {
	out := models.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
	if doc.Metadata != nil {
		out.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			if k == embeddingKey {
				continue
			}
			out.Metadata[k] = v
		}
	}
	return out
}
