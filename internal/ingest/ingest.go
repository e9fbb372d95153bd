// Package ingest pulls RSS/Atom feeds into the article store. Feed
// items become canonical-URL keyed articles; duplicates across feeds
// and repeat fetches collapse on the key.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/langdetect"
	"horse.fit/vantage/internal/language"
	"horse.fit/vantage/internal/reader"
	"horse.fit/vantage/internal/urlnorm"
)

// Store is the persistence surface ingest needs. *db.Pool satisfies it.
type Store interface {
	UpsertArticle(ctx context.Context, article db.Article) (bool, error)
	SetArticleText(ctx context.Context, articleKey, text string, now time.Time) error
}

// Result tallies one ingest run.
type Result struct {
	Feeds     int `json:"feeds"`
	Items     int `json:"items"`
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
	Skipped   int `json:"skipped"`
	Extracted int `json:"extracted"`
}

// Options controls one ingest run.
type Options struct {
	// ExtractText fetches and stores the readable body for every
	// newly inserted article. Off by default; bodies usually arrive
	// lazily when an article is first matched.
	ExtractText bool
}

type Ingestor struct {
	store     Store
	parser    *gofeed.Parser
	extractor reader.Extractor
	logger    zerolog.Logger
}

func NewIngestor(store Store, logger zerolog.Logger) *Ingestor {
	parser := gofeed.NewParser()
	parser.UserAgent = "VantageIngest/1.0 (+https://horse.fit/vantage)"
	return &Ingestor{store: store, parser: parser, logger: logger}
}

// Run fetches every feed URL and upserts its items. A failing feed is
// logged and skipped; the run only fails on store errors.
func (i *Ingestor) Run(ctx context.Context, feedURLs []string, opts Options) (Result, error) {
	if i == nil || i.store == nil {
		return Result{}, fmt.Errorf("ingestor is not initialized")
	}

	var result Result
	for _, feedURL := range feedURLs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		feed, err := i.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			i.logger.Warn().Err(err).Str("feed", feedURL).Msg("feed fetch failed")
			continue
		}
		result.Feeds++

		sourceName := strings.TrimSpace(feed.Title)
		declaredLang := feed.Language
		for _, item := range feed.Items {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Items++

			article, ok := i.articleFromItem(item, sourceName, declaredLang)
			if !ok {
				result.Skipped++
				continue
			}

			inserted, err := i.store.UpsertArticle(ctx, article)
			if err != nil {
				return result, err
			}
			if !inserted {
				result.Duplicate++
				continue
			}
			result.Inserted++

			if opts.ExtractText {
				extraction := i.extractor.Extract(ctx, article.ArticleKey, article.Title)
				if extraction.Status != reader.StatusSuccess {
					i.logger.Debug().Str("article_key", article.ArticleKey).
						Str("status", string(extraction.Status)).
						Msg("text extraction unavailable")
					continue
				}
				if err := i.store.SetArticleText(ctx, article.ArticleKey, extraction.Text, globaltime.Now().UTC()); err != nil {
					return result, err
				}
				result.Extracted++
			}
		}
	}
	return result, nil
}

func (i *Ingestor) articleFromItem(item *gofeed.Item, sourceName, declaredLang string) (db.Article, bool) {
	if item == nil {
		return db.Article{}, false
	}
	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return db.Article{}, false
	}

	key, host, err := urlnorm.Canonicalize(link)
	if err != nil {
		i.logger.Debug().Err(err).Str("link", link).Msg("skipping item with bad link")
		return db.Article{}, false
	}

	publishedAt := globaltime.Now().UTC()
	if item.PublishedParsed != nil {
		publishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		publishedAt = item.UpdatedParsed.UTC()
	}

	article := db.Article{
		ArticleKey:   key,
		SourceName:   sourceName,
		SourceDomain: host,
		Title:        title,
		PublishedAt:  publishedAt,
		Language:     resolveLanguage(declaredLang, title, item.Description),
		FirstSeenAt:  globaltime.Now().UTC(),
	}
	if description := reader.CleanText(item.Description); description != "" {
		article.Description = &description
	}
	return article, true
}

// resolveLanguage trusts what the feed declares before falling back to
// detection over the item text.
func resolveLanguage(declared, title, description string) string {
	if code := language.NormalizeCode(declared); code != "" {
		return code
	}
	return langdetect.ForArticle(title, description)
}
