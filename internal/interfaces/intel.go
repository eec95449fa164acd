package interfaces

import "fx-intel-bot/internal/types"

// Intelligence is the read side of the market intelligence service.
type Intelligence interface {
	CurrentSentiment() float64
	Trend() types.Trend
	Stats() types.IntelStats
	History() []types.SentimentSample
	RecentArticles(n int) []types.ScoredArticle
	LatestSnapshot() (types.MarketSnapshot, bool)
}
