package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/types"
)

// ScrapePage is one HTML page to pull headlines from when every feed comes
// back empty.
type ScrapePage struct {
	Name          string
	URL           string
	TitleSelector string
	Weight        float64
	Reliability   float64
}

// DefaultScrapePages returns the built-in fallback pages.
func DefaultScrapePages() []ScrapePage {
	return []ScrapePage{
		{
			Name:          "MarketWatch",
			URL:           "https://www.marketwatch.com/latest-news",
			TitleSelector: "h3.article__headline a, h2.article__headline a",
			Weight:        0.8,
			Reliability:   0.85,
		},
		{
			Name:          "Yahoo Finance",
			URL:           "https://finance.yahoo.com/news/",
			TitleSelector: "h3 a",
			Weight:        0.7,
			Reliability:   0.8,
		},
		{
			Name:          "Financial Times",
			URL:           "https://www.ft.com/markets",
			TitleSelector: "a.js-teaser-heading-link",
			Weight:        0.8,
			Reliability:   0.9,
		},
	}
}

// Scraper is the last-resort headline collector. It only runs on cycles
// where the feed fetch produced nothing.
type Scraper struct {
	pages   []ScrapePage
	timeout time.Duration
}

func NewScraper(pages []ScrapePage, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{pages: pages, timeout: timeout}
}

// ScrapeHeadlines visits each fallback page and collects up to maxHeadlines
// headlines in total. Page failures are logged and skipped.
func (s *Scraper) ScrapeHeadlines(ctx context.Context, maxHeadlines int) []types.Article {
	if maxHeadlines <= 0 {
		maxHeadlines = 10
	}

	all := []types.Article{}
	for _, page := range s.pages {
		if len(all) >= maxHeadlines {
			break
		}
		articles, err := s.scrapePage(page, maxHeadlines-len(all))
		if err != nil {
			logger.Warn(ctx, "Fallback scrape failed", "page", page.Name, "error", err.Error())
			continue
		}
		all = append(all, articles...)
	}

	logger.Info(ctx, "Fallback scrape completed", "pages", len(s.pages), "headlines", len(all))
	return all
}

func (s *Scraper) scrapePage(page ScrapePage, limit int) ([]types.Article, error) {
	articles := []types.Article{}

	c := colly.NewCollector(
		colly.AllowedDomains(hostOf(page.URL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	now := time.Now().UTC()
	c.OnHTML(page.TitleSelector, func(e *colly.HTMLElement) {
		if len(articles) >= limit {
			return
		}
		title := strings.TrimSpace(e.Text)
		if title == "" {
			return
		}
		link := e.Attr("href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = absoluteURL(page.URL, link)
		}
		articles = append(articles, types.Article{
			Title:             title,
			URL:               link,
			Source:            page.Name,
			SourceWeight:      page.Weight,
			SourceReliability: page.Reliability,
			PublishedAt:       now,
			FetchedAt:         now,
		})
	})

	if err := c.Visit(page.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", page.URL, err)
	}
	c.Wait()

	return articles, nil
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
