// Package intel runs the background collection loops that feed the trading
// engine: a news cycle that scans feeds and scores headlines, and a market
// cycle that samples price action. Both fold into the sentiment aggregator.
package intel

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"fx-intel-bot/internal/interfaces"
	"fx-intel-bot/internal/logger"
	"fx-intel-bot/internal/marketdata"
	"fx-intel-bot/internal/news"
	"fx-intel-bot/internal/sentiment"
	"fx-intel-bot/internal/store"
	"fx-intel-bot/internal/types"
)

const fallbackHeadlines = 10

// Service owns the news and market collection loops. The two cycle types run
// on independent tickers and may overlap each other, but a cycle type never
// overlaps itself: a tick that lands while the previous cycle of the same
// type is still running is skipped, not queued.
type Service struct {
	fetcher   *news.Fetcher
	scorer    *news.Scorer
	scraper   *news.Scraper
	collector *marketdata.Collector
	agg       *sentiment.Aggregator
	history   *store.History

	newsInterval   time.Duration
	marketInterval time.Duration
	cacheCap       int
	warmWindow     int

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	wg      sync.WaitGroup

	newsBusy     atomic.Bool
	marketBusy   atomic.Bool
	newsCycles   atomic.Int64
	marketCycles atomic.Int64

	cacheMu sync.Mutex
	cache   []types.ScoredArticle

	snapMu  sync.RWMutex
	snap    types.MarketSnapshot
	hasSnap bool
}

var _ interfaces.Intelligence = (*Service)(nil)

// NewService wires the collection pipeline from config. history may be nil;
// the service then skips persistence and warm start but runs the same.
func NewService(cfg *store.Config, brk interfaces.Broker, history *store.History) *Service {
	timeout := time.Duration(cfg.Intel.FetchTimeoutSeconds) * time.Second

	fetcher := news.NewFetcher(configuredSources(cfg), news.FetcherConfig{
		Timeout:      timeout,
		PerSourceCap: cfg.Intel.PerSourceCap,
	})

	var scraper *news.Scraper
	if cfg.Intel.ScrapeFallback {
		scraper = news.NewScraper(news.DefaultScrapePages(), timeout)
	}

	aggCfg := sentiment.DefaultAggregatorConfig()
	aggCfg.HistorySize = cfg.Intel.HistorySize
	aggCfg.RecentWindow = cfg.Intel.RecentWindow
	aggCfg.TrendWindow = cfg.Intel.TrendWindow
	aggCfg.TrendMinSamples = cfg.Intel.TrendMinSamples
	aggCfg.SlopeThreshold = cfg.Intel.TrendSlopeThreshold

	return &Service{
		fetcher:        fetcher,
		scorer:         news.NewScorer(),
		scraper:        scraper,
		collector:      marketdata.NewCollector(brk, marketdata.NewBinanceClient(cfg.Intel.CryptoSymbols), cfg.Instruments),
		agg:            sentiment.NewAggregator(aggCfg),
		history:        history,
		newsInterval:   time.Duration(cfg.Intel.NewsIntervalSeconds) * time.Second,
		marketInterval: time.Duration(cfg.Intel.MarketIntervalSeconds) * time.Second,
		cacheCap:       cfg.Intel.ArticleCacheSize,
		warmWindow:     cfg.Intel.TrendWindow,
	}
}

// configuredSources maps the config override onto the source registry; an
// empty override keeps the built-in list. Kind defaults to feed.
func configuredSources(cfg *store.Config) []news.Source {
	if len(cfg.Intel.Sources) == 0 {
		return news.DefaultSources()
	}
	sources := make([]news.Source, 0, len(cfg.Intel.Sources))
	for _, s := range cfg.Intel.Sources {
		kind := news.KindFeed
		if s.Kind == string(news.KindJSONAPI) {
			kind = news.KindJSONAPI
		}
		sources = append(sources, news.Source{
			Name:        s.Name,
			URL:         s.URL,
			Kind:        kind,
			Weight:      s.Weight,
			Reliability: s.Reliability,
		})
	}
	return sources
}

// Start warms the aggregator from persisted samples and launches both loops.
// Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn(ctx, "Intelligence service already running")
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	s.mu.Unlock()

	s.warm(ctx)

	s.wg.Add(2)
	go s.loop(ctx, s.newsInterval, s.runNewsCycle)
	go s.loop(ctx, s.marketInterval, s.runMarketCycle)

	logger.Info(ctx, "Intelligence service started",
		"news_interval", s.newsInterval.String(),
		"market_interval", s.marketInterval.String(),
		"sources", s.fetcher.SourceCount())
}

// Stop halts the tickers and waits for in-flight cycles to finish. Safe to
// call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info(context.Background(), "Intelligence service stopped",
		"news_cycles", s.newsCycles.Load(),
		"market_cycles", s.marketCycles.Load())
}

func (s *Service) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	s.spawn(ctx, run)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.spawn(ctx, run)
		}
	}
}

func (s *Service) spawn(ctx context.Context, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx)
	}()
}

// warm preloads the aggregator ring from recent persisted samples so the
// first trading decisions after a restart are not made on an empty history.
func (s *Service) warm(ctx context.Context) {
	if s.history == nil {
		return
	}
	samples, err := s.history.RecentSentiment(ctx, s.warmWindow)
	if err != nil {
		logger.Warn(ctx, "Sentiment warm start failed", "error", err.Error())
		return
	}
	if len(samples) == 0 {
		return
	}
	s.agg.Preload(samples)
	logger.Info(ctx, "Sentiment history preloaded", "samples", len(samples))
}

func (s *Service) runNewsCycle(ctx context.Context) {
	if !s.newsBusy.CompareAndSwap(false, true) {
		logger.Debug(ctx, "News cycle still running, tick skipped")
		return
	}
	defer s.newsBusy.Store(false)
	defer logPanic(ctx, "news")

	start := time.Now()
	articles, sourcesOK := s.fetcher.FetchAll(ctx)
	if len(articles) == 0 && s.scraper != nil {
		logger.Warn(ctx, "All feeds came back empty, falling back to scraping")
		articles = s.scraper.ScrapeHeadlines(ctx, fallbackHeadlines)
	}

	scored := make([]types.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		scored = append(scored, s.scorer.Score(a))
	}

	sample := s.agg.RecordNewsCycle(scored, sourcesOK)
	s.cacheArticles(scored)
	s.newsCycles.Add(1)

	logger.Cycle(ctx, "news", len(scored), sample.Sentiment,
		"sources_ok", sourcesOK,
		"trend", string(s.agg.Trend()),
		"duration_ms", time.Since(start).Milliseconds())

	s.persistSample(ctx, sample, scored)
}

func (s *Service) runMarketCycle(ctx context.Context) {
	if !s.marketBusy.CompareAndSwap(false, true) {
		logger.Debug(ctx, "Market cycle still running, tick skipped")
		return
	}
	defer s.marketBusy.Store(false)
	defer logPanic(ctx, "market")

	start := time.Now()
	snap := s.collector.Snapshot(ctx)
	value := s.agg.RecordMarketCycle(snap)

	s.snapMu.Lock()
	s.snap = snap
	s.hasSnap = true
	s.snapMu.Unlock()

	s.marketCycles.Add(1)

	logger.Cycle(ctx, "market", len(snap.FX)+len(snap.Crypto), value,
		"fx_pairs", len(snap.FX),
		"crypto_pairs", len(snap.Crypto),
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *Service) cacheArticles(scored []types.ScoredArticle) {
	if len(scored) == 0 {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = append(s.cache, scored...)
	if over := len(s.cache) - s.cacheCap; over > 0 {
		s.cache = s.cache[over:]
	}
}

func (s *Service) persistSample(ctx context.Context, sample types.SentimentSample, scored []types.ScoredArticle) {
	if s.history == nil {
		return
	}
	headlines := make([]string, 0, fallbackHeadlines)
	for _, a := range scored {
		if len(headlines) >= fallbackHeadlines {
			break
		}
		headlines = append(headlines, a.Title)
	}
	if err := s.history.SaveNewsSentiment(ctx, sample, headlines); err != nil {
		logger.Warn(ctx, "Sentiment sample not persisted", "error", err.Error())
	}
}

// CurrentSentiment returns the blended sentiment the engine trades on.
func (s *Service) CurrentSentiment() float64 {
	return s.agg.Current()
}

// Trend returns the direction of recent sentiment.
func (s *Service) Trend() types.Trend {
	return s.agg.Trend()
}

// History returns the news samples collected so far, oldest first.
func (s *Service) History() []types.SentimentSample {
	return s.agg.History()
}

// RecentArticles returns up to n of the most recently scored articles,
// oldest first. n <= 0 returns the whole cache.
func (s *Service) RecentArticles(n int) []types.ScoredArticle {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if n <= 0 || n > len(s.cache) {
		n = len(s.cache)
	}
	out := make([]types.ScoredArticle, n)
	copy(out, s.cache[len(s.cache)-n:])
	return out
}

// LatestSnapshot returns the most recent market snapshot, if any cycle has
// completed yet.
func (s *Service) LatestSnapshot() (types.MarketSnapshot, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap, s.hasSnap
}

// Stats reports the service's counters for status commands and reports.
func (s *Service) Stats() types.IntelStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.cacheMu.Lock()
	cached := len(s.cache)
	s.cacheMu.Unlock()

	return types.IntelStats{
		Running:               running,
		NewsCyclesRun:         s.newsCycles.Load(),
		MarketCyclesRun:       s.marketCycles.Load(),
		HistoryLength:         s.agg.Len(),
		CacheLength:           cached,
		CurrentSentiment:      s.agg.Current(),
		ConfiguredSourceCount: s.fetcher.SourceCount(),
	}
}

func logPanic(ctx context.Context, kind string) {
	if r := recover(); r != nil {
		logger.Error(ctx, "Intel cycle panicked",
			"kind", kind,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
	}
}
