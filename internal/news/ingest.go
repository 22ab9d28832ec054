package news

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"marketminds/internal/models"
	"marketminds/internal/store"
	"marketminds/pkg/utils"
)

// contentFields are tried in order to find an article's body.
var contentFields = []string{"content", "text", "body", "description"}

// Report summarizes one ingestion pass.
type Report struct {
	Files     int      `json:"files"`
	Skipped   int      `json:"skipped"`
	Documents int      `json:"documents"`
	Failed    []string `json:"failed,omitempty"`
}

type compactor interface {
	Compact() error
}

// Ingester loads JSON article files into a Store, recording each processed
// file in a ledger so it is never ingested twice.
type Ingester struct {
	store  Store
	ledger store.FileLedger
	logger zerolog.Logger
	retry  utils.RetryConfig

	mu sync.Mutex
}

// NewIngester creates an ingester.
func NewIngester(s Store, ledger store.FileLedger, logger zerolog.Logger) *Ingester {
	return &Ingester{
		store:  s,
		ledger: ledger,
		logger: logger.With().Str("component", "ingest").Logger(),
		retry:  utils.DefaultRetryConfig(),
	}
}

// IngestDir processes every unprocessed *.json file in dir, in name order.
// A file that fails to parse or store is reported and left unmarked so a
// later pass retries it.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (Report, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	var report Report
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return report, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Files++

		done, err := in.ledger.IsFileProcessed(ctx, path)
		if err != nil {
			return report, err
		}
		if done {
			report.Skipped++
			continue
		}

		n, err := in.IngestFile(ctx, path)
		if err != nil {
			in.logger.Warn().Err(err).Str("file", path).Msg("Ingestion failed")
			report.Failed = append(report.Failed, path)
			continue
		}
		report.Documents += n
	}

	if c, ok := in.store.(compactor); ok && report.Documents > 0 {
		if err := c.Compact(); err != nil {
			in.logger.Warn().Err(err).Msg("Store compaction failed")
		}
	}

	in.logger.Info().
		Int("files", report.Files).
		Int("skipped", report.Skipped).
		Int("documents", report.Documents).
		Int("failed", len(report.Failed)).
		Msg("Ingestion pass complete")
	return report, nil
}

// IngestFile parses, stores and marks a single file. It returns the number of
// documents added.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	docs, err := ParseArticles(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source_file"] = filepath.Base(path)
	}

	if len(docs) > 0 {
		err = utils.Retry(ctx, in.retry, func() error {
			return in.store.Add(ctx, docs)
		})
		if err != nil {
			return 0, err
		}
	}

	if err := in.ledger.MarkFileProcessed(ctx, path, len(docs)); err != nil {
		return len(docs), err
	}
	in.logger.Debug().Str("file", path).Int("documents", len(docs)).Msg("File ingested")
	return len(docs), nil
}

// Watch runs IngestDir on schedule until ctx is cancelled. The first pass
// runs immediately.
func (in *Ingester) Watch(ctx context.Context, dir, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := in.IngestDir(ctx, dir); err != nil && ctx.Err() == nil {
			in.logger.Error().Err(err).Msg("Scheduled ingestion failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	if _, err := in.IngestDir(ctx, dir); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ParseArticles decodes a JSON array of articles or an object holding an
// "articles" array. Articles without text are skipped. HTML is reduced to
// its text and remaining fields become metadata.
func ParseArticles(data []byte) ([]models.Document, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Articles []map[string]any `json:"articles"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("invalid article file: %w", err)
		}
		raw = wrapped.Articles
	}

	docs := make([]models.Document, 0, len(raw))
	for _, article := range raw {
		body := ""
		used := ""
		for _, field := range contentFields {
			if s, ok := article[field].(string); ok && strings.TrimSpace(s) != "" {
				body, used = s, field
				break
			}
		}
		body = StripHTML(body)
		if body == "" {
			continue
		}

		title, _ := article["title"].(string)
		title = StripHTML(title)
		content := body
		if title != "" {
			content = title + "\n\n" + body
		}

		meta := make(map[string]any, len(article))
		for k, v := range article {
			if k == used || k == embeddingKey {
				continue
			}
			meta[k] = v
		}
		docs = append(docs, models.Document{Content: content, Metadata: meta})
	}
	return docs, nil
}

// StripHTML returns the whitespace-normalized text of an HTML fragment.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
