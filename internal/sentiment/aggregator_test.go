package sentiment

import (
	"sync"
	"testing"
	"time"

	"fx-intel-bot/internal/news"
	"fx-intel-bot/internal/types"
)

func sampleAt(sentiment float64) types.SentimentSample {
	return types.SentimentSample{
		Time:      time.Now().UTC(),
		Sentiment: sentiment,
	}
}

func scored(sentiment, relevance, weight float64) types.ScoredArticle {
	return types.ScoredArticle{
		Article:   types.Article{SourceWeight: weight},
		Relevance: relevance,
		Sentiment: sentiment,
	}
}

func TestCurrentNeutralWhenEmpty(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	if got := a.Current(); got != 0.5 {
		t.Errorf("Expected 0.5 with no data, got %f", got)
	}
}

func TestEmptyCycleRecordsNeutralSample(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	s := a.RecordNewsCycle(nil, 5)
	if s.Sentiment != 0.5 {
		t.Errorf("Expected neutral sample, got %f", s.Sentiment)
	}
	if s.ArticleCount != 0 {
		t.Errorf("Expected zero article count, got %d", s.ArticleCount)
	}
	if s.SourcesScanned != 5 {
		t.Errorf("Expected sources scanned recorded, got %d", s.SourcesScanned)
	}
	if a.Len() != 1 {
		t.Errorf("Expected sample appended, got len %d", a.Len())
	}
}

func TestWeightedMeanMapping(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	// Single fully-positive article maps to 1.0 on the stored scale.
	s := a.RecordNewsCycle([]types.ScoredArticle{scored(1.0, 1.0, 1.0)}, 1)
	if s.Sentiment != 1.0 {
		t.Errorf("Expected 1.0, got %f", s.Sentiment)
	}
	// Fully negative maps to 0.
	s = a.RecordNewsCycle([]types.ScoredArticle{scored(-1.0, 1.0, 1.0)}, 1)
	if s.Sentiment != 0.0 {
		t.Errorf("Expected 0.0, got %f", s.Sentiment)
	}
}

func TestZeroWeightArticlesIgnored(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	s := a.RecordNewsCycle([]types.ScoredArticle{
		scored(-1.0, 0.0, 0.9), // zero relevance, no weight
		scored(1.0, 0.5, 0.8),
	}, 2)
	if s.Sentiment != 1.0 {
		t.Errorf("Expected only the weighted article to count, got %f", s.Sentiment)
	}
	if s.ArticleCount != 2 {
		t.Errorf("Expected article count to include all articles, got %d", s.ArticleCount)
	}
}

func TestHigherWeightDominates(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	s := a.RecordNewsCycle([]types.ScoredArticle{
		scored(1.0, 0.9, 0.9),
		scored(-1.0, 0.2, 0.5),
	}, 2)
	if s.Sentiment <= 0.5 {
		t.Errorf("Expected heavily weighted positive article to dominate, got %f", s.Sentiment)
	}
}

func TestCurrentMovesWithFreshSample(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 10; i++ {
		a.Preload([]types.SentimentSample{sampleAt(0.5)})
	}
	before := a.Current()
	a.RecordNewsCycle([]types.ScoredArticle{scored(1.0, 1.0, 1.0)}, 1)
	after := a.Current()
	if after <= before {
		t.Errorf("Expected fresh positive sample to raise current, before=%f after=%f", before, after)
	}
}

func TestCurrentRecencyWeighting(t *testing.T) {
	cfg := DefaultAggregatorConfig()
	a := NewAggregator(cfg)
	// Old positive run then a fresh negative run: the fresh samples must
	// pull the value below the plain mean.
	samples := []types.SentimentSample{}
	for i := 0; i < 5; i++ {
		samples = append(samples, sampleAt(0.9))
	}
	for i := 0; i < 5; i++ {
		samples = append(samples, sampleAt(0.1))
	}
	a.Preload(samples)
	got := a.Current()
	if got >= 0.5 {
		t.Errorf("Expected recency weighting to favor fresh negative samples, got %f", got)
	}
}

func TestCurrentBounds(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 50; i++ {
		a.RecordNewsCycle([]types.ScoredArticle{scored(1.0, 1.0, 1.0)}, 1)
		if c := a.Current(); c < 0.0 || c > 1.0 {
			t.Fatalf("Current out of bounds: %f", c)
		}
	}
	for i := 0; i < 50; i++ {
		a.RecordNewsCycle([]types.ScoredArticle{scored(-1.0, 1.0, 1.0)}, 1)
		if c := a.Current(); c < 0.0 || c > 1.0 {
			t.Fatalf("Current out of bounds: %f", c)
		}
	}
}

func TestRingEviction(t *testing.T) {
	cfg := DefaultAggregatorConfig()
	cfg.HistorySize = 5
	a := NewAggregator(cfg)
	for i := 0; i < 5; i++ {
		a.Preload([]types.SentimentSample{{Sentiment: float64(i) / 10.0}})
	}
	if a.Len() != 5 {
		t.Fatalf("Expected full ring, got %d", a.Len())
	}
	// One past capacity evicts the oldest.
	a.Preload([]types.SentimentSample{{Sentiment: 0.9}})
	if a.Len() != 5 {
		t.Errorf("Expected len to stay at capacity, got %d", a.Len())
	}
	h := a.History()
	if h[0].Sentiment != 0.1 {
		t.Errorf("Expected oldest sample evicted, head is %f", h[0].Sentiment)
	}
	if h[len(h)-1].Sentiment != 0.9 {
		t.Errorf("Expected newest sample kept, tail is %f", h[len(h)-1].Sentiment)
	}
}

func TestTrendInsufficientData(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 4; i++ {
		a.Preload([]types.SentimentSample{sampleAt(0.5)})
	}
	if got := a.Trend(); got != types.TrendInsufficientData {
		t.Errorf("Expected INSUFFICIENT_DATA with 4 samples, got %s", got)
	}
}

func TestTrendImproving(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 20; i++ {
		a.Preload([]types.SentimentSample{sampleAt(0.4 + float64(i)*0.01)})
	}
	if got := a.Trend(); got != types.TrendImproving {
		t.Errorf("Expected IMPROVING on rising ramp, got %s", got)
	}
}

func TestTrendDeclining(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 20; i++ {
		a.Preload([]types.SentimentSample{sampleAt(0.6 - float64(i)*0.01)})
	}
	if got := a.Trend(); got != types.TrendDeclining {
		t.Errorf("Expected DECLINING on falling ramp, got %s", got)
	}
}

func TestTrendStable(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	for i := 0; i < 20; i++ {
		a.Preload([]types.SentimentSample{sampleAt(0.5)})
	}
	if got := a.Trend(); got != types.TrendStable {
		t.Errorf("Expected STABLE on flat series, got %s", got)
	}
}

func TestMarketCycleSignAware(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	down := types.MarketSnapshot{
		FX: map[string]types.InstrumentBar{
			"EUR_USD": {PercentChange: -2.0},
			"GBP_USD": {PercentChange: -1.0},
		},
	}
	got := a.RecordMarketCycle(down)
	if got >= 0.5 {
		t.Errorf("Expected a uniformly negative day below neutral, got %f", got)
	}

	up := types.MarketSnapshot{
		FX: map[string]types.InstrumentBar{
			"EUR_USD": {PercentChange: 2.0},
			"GBP_USD": {PercentChange: 1.0},
		},
	}
	got = a.RecordMarketCycle(up)
	if got <= 0.5 {
		t.Errorf("Expected a uniformly positive day above neutral, got %f", got)
	}
}

func TestMarketCycleSaturates(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	snap := types.MarketSnapshot{
		FX: map[string]types.InstrumentBar{"EUR_USD": {PercentChange: -50.0}},
	}
	if got := a.RecordMarketCycle(snap); got != 0.0 {
		t.Errorf("Expected saturation at 0, got %f", got)
	}
	snap.FX["EUR_USD"] = types.InstrumentBar{PercentChange: 50.0}
	if got := a.RecordMarketCycle(snap); got != 1.0 {
		t.Errorf("Expected saturation at 1, got %f", got)
	}
}

func TestMarketCycleEmptySnapshotKeepsPrevious(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	a.RecordMarketCycle(types.MarketSnapshot{
		FX: map[string]types.InstrumentBar{"EUR_USD": {PercentChange: 2.0}},
	})
	prev, ok := a.Market()
	if !ok {
		t.Fatal("Expected market value recorded")
	}
	got := a.RecordMarketCycle(types.MarketSnapshot{})
	if got != prev {
		t.Errorf("Expected empty snapshot to keep previous value %f, got %f", prev, got)
	}
}

func TestCurrentBlendsNewsAndMarket(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	// Market only.
	a.RecordMarketCycle(types.MarketSnapshot{
		FX: map[string]types.InstrumentBar{"EUR_USD": {PercentChange: 2.0}},
	})
	market, _ := a.Market()
	if got := a.Current(); got != market {
		t.Errorf("Expected market-only current %f, got %f", market, got)
	}
	// Add strongly positive news, blend should sit between news and market.
	a.RecordNewsCycle([]types.ScoredArticle{scored(1.0, 1.0, 1.0)}, 1)
	got := a.Current()
	if got <= market || got >= 1.0 {
		t.Errorf("Expected blend between %f and 1.0, got %f", market, got)
	}
}

func TestEndToEndThreeHeadlines(t *testing.T) {
	scorer := news.NewScorer()
	a := NewAggregator(DefaultAggregatorConfig())

	articles := []types.Article{
		{Title: "Fed raises interest rates, dollar surges to record high", SourceWeight: 0.9},
		{Title: "Markets flat amid holiday trading", SourceWeight: 0.8},
		{Title: "ECB warns of recession, euro plunges in panic selling", SourceWeight: 0.3},
	}
	scoredArticles := make([]types.ScoredArticle, 0, len(articles))
	for _, art := range articles {
		scoredArticles = append(scoredArticles, scorer.Score(art))
	}

	s := a.RecordNewsCycle(scoredArticles, 3)
	if s.ArticleCount != 3 {
		t.Errorf("Expected 3 articles counted, got %d", s.ArticleCount)
	}
	// The positive headline carries far more weight than the negative one,
	// so the cycle lands above neutral.
	if s.Sentiment <= 0.5 {
		t.Errorf("Expected positive cycle sentiment, got %f", s.Sentiment)
	}
	if got := a.Current(); got <= 0.5 {
		t.Errorf("Expected current above neutral, got %f", got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	a := NewAggregator(DefaultAggregatorConfig())
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if w%2 == 0 {
					a.RecordNewsCycle([]types.ScoredArticle{scored(1.0, 0.8, 0.8)}, 1)
				} else {
					a.RecordMarketCycle(types.MarketSnapshot{
						FX: map[string]types.InstrumentBar{"EUR_USD": {PercentChange: -1.0}},
					})
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if c := a.Current(); c < 0.0 || c > 1.0 {
					t.Errorf("Current out of bounds under concurrency: %f", c)
					return
				}
				_ = a.Trend()
				_ = a.History()
			}
		}()
	}
	wg.Wait()
}
