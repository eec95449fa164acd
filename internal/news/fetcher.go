package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"fx-intel-bot/internal/api"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/types"
)

// FetcherConfig bounds one scan cycle.
type FetcherConfig struct {
	Timeout      time.Duration // per-source budget
	PerSourceCap int           // max articles kept per source
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      10 * time.Second,
		PerSourceCap: 50,
	}
}

// parseFunc maps one raw response body to normalized articles.
type parseFunc func(body []byte, src Source) ([]types.Article, error)

// boundSource is a source with its format adapter resolved up front, so a
// fetch never has to inspect the kind again.
type boundSource struct {
	Source
	parse parseFunc
}

func adapterFor(kind SourceKind) parseFunc {
	if kind == KindJSONAPI {
		return parseJSONItems
	}
	return parseFeedItems
}

// Fetcher pulls articles from all configured sources concurrently. A failed
// source is logged and skipped, it never fails the cycle.
type Fetcher struct {
	sources []boundSource
	client  *resty.Client
	cfg     FetcherConfig
}

func NewFetcher(sources []Source, cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PerSourceCap <= 0 {
		cfg.PerSourceCap = 50
	}
	client := api.NewClient(
		api.WithTimeout(cfg.Timeout),
		api.WithHeaders(api.FeedHeaders()),
		api.WithLogging(true),
	)
	bound := make([]boundSource, len(sources))
	for i, s := range sources {
		bound[i] = boundSource{Source: s, parse: adapterFor(s.Kind)}
	}
	return &Fetcher{
		sources: bound,
		client:  client,
		cfg:     cfg,
	}
}

// SourceCount returns the number of configured sources.
func (f *Fetcher) SourceCount() int {
	return len(f.sources)
}

// FetchAll issues one request per source and returns the normalized articles
// in configured source order, plus the number of sources that responded.
func (f *Fetcher) FetchAll(ctx context.Context) ([]types.Article, int) {
	results := make([][]types.Article, len(f.sources))
	ok := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, src := range f.sources {
		wg.Add(1)
		go func(i int, src boundSource) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
			defer cancel()

			articles, err := f.fetchSource(srcCtx, src)
			if err != nil {
				logger.Warn(ctx, "Source fetch failed", "source", src.Name, "error", err.Error())
				return
			}
			mu.Lock()
			results[i] = articles
			ok++
			mu.Unlock()
		}(i, src)
	}
	wg.Wait()

	all := []types.Article{}
	for _, r := range results {
		all = append(all, r...)
	}
	return all, ok
}

func (f *Fetcher) fetchSource(ctx context.Context, src boundSource) ([]types.Article, error) {
	resp, err := f.client.R().SetContext(ctx).Get(src.URL)
	if err != nil {
		return nil, err
	}
	if err := api.CheckStatus(resp); err != nil {
		return nil, err
	}

	articles, err := src.parse(resp.Body(), src.Source)
	if err != nil {
		return nil, err
	}

	if len(articles) > f.cfg.PerSourceCap {
		articles = articles[:f.cfg.PerSourceCap]
	}
	return articles, nil
}

// parseFeedItems handles RSS and Atom bodies. A fresh parser per call keeps
// this safe under the fan-out.
func parseFeedItems(body []byte, src Source) ([]types.Article, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	articles := make([]types.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}
		articles = append(articles, types.Article{
			Title:             title,
			Description:       StripHTML(item.Description),
			URL:               item.Link,
			Source:            src.Name,
			SourceWeight:      src.Weight,
			SourceReliability: src.Reliability,
			PublishedAt:       published,
			FetchedAt:         now,
		})
	}
	return articles, nil
}

type jsonItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Link        string `json:"link"`
	URL         string `json:"url"`
	Published   string `json:"published"`
	Date        string `json:"date"`
}

type jsonDoc struct {
	Items    []jsonItem `json:"items"`
	Articles []jsonItem `json:"articles"`
}

// parseJSONItems handles JSON API bodies, either a bare array or an object
// wrapping the list under "items" or "articles".
func parseJSONItems(body []byte, src Source) ([]types.Article, error) {
	var items []jsonItem
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("parse json feed: %w", err)
		}
	} else {
		var doc jsonDoc
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parse json feed: %w", err)
		}
		items = doc.Items
		if len(items) == 0 {
			items = doc.Articles
		}
	}

	now := time.Now().UTC()
	articles := make([]types.Article, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		desc := it.Description
		if desc == "" {
			desc = it.Summary
		}
		link := it.Link
		if link == "" {
			link = it.URL
		}
		published := now
		if ts := it.Published; ts != "" {
			published = parseTimestamp(ts, now)
		} else if it.Date != "" {
			published = parseTimestamp(it.Date, now)
		}
		articles = append(articles, types.Article{
			Title:             title,
			Description:       StripHTML(desc),
			URL:               link,
			Source:            src.Name,
			SourceWeight:      src.Weight,
			SourceReliability: src.Reliability,
			PublishedAt:       published,
			FetchedAt:         now,
		})
	}
	return articles, nil
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// StripHTML reduces a possibly-HTML fragment to collapsed plain text.
func StripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
