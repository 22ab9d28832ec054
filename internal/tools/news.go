package tools

import (
	"context"
	"strings"

	"marketminds/internal/models"
)

// NewsDocument is one retrieved article as returned to the model.
type NewsDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

func (e *Executor) executeNews(ctx context.Context, params map[string]interface{}) []NewsDocument {
	return e.News(ctx, getStringParam(params, "news_data_request", ""))
}

// News retrieves documents relevant to query. Retrieval failures are logged
// and yield an empty list.
func (e *Executor) News(ctx context.Context, query string) []NewsDocument {
	out := []NewsDocument{}
	query = strings.TrimSpace(query)
	if query == "" || e.searcher == nil {
		return out
	}

	docs, err := e.searcher.Search(ctx, query, e.news.K, e.news.FetchK)
	if err != nil {
		e.logger.Error().Err(err).Str("query", query).Msg("Error retrieving news data")
		return out
	}
	for _, d := range docs {
		out = append(out, toNewsDocument(d))
	}
	e.logger.Info().Int("documents", len(out)).Str("query", query).Msg("News documents retrieved")
	return out
}

func toNewsDocument(d models.Document) NewsDocument {
	meta := make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		if k == "embedding" {
			continue
		}
		meta[k] = v
	}
	return NewsDocument{PageContent: d.Content, Metadata: meta}
}
