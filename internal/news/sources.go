package news

// SourceKind tags the response shape of a source endpoint.
type SourceKind string

const (
	KindFeed    SourceKind = "feed"
	KindJSONAPI SourceKind = "json-api"
)

// Source is one configured news endpoint. Immutable after load.
type Source struct {
	Name        string
	URL         string
	Kind        SourceKind
	Weight      float64
	Reliability float64
}

// DefaultSources returns the built-in source list.
func DefaultSources() []Source {
	return []Source{
		{
			Name:        "MarketWatch",
			URL:         "https://www.marketwatch.com/rss/realtimeheadlines",
			Kind:        KindFeed,
			Weight:      0.8,
			Reliability: 0.85,
		},
		{
			Name:        "Yahoo Finance",
			URL:         "https://finance.yahoo.com/rss/headline",
			Kind:        KindFeed,
			Weight:      0.7,
			Reliability: 0.8,
		},
		{
			Name:        "Reuters",
			URL:         "https://www.reutersagency.com/feed/?best-topics=business-finance&post_type=best",
			Kind:        KindJSONAPI,
			Weight:      0.9,
			Reliability: 0.95,
		},
		{
			Name:        "Bloomberg",
			URL:         "https://feeds.bloomberg.com/markets/news.rss",
			Kind:        KindFeed,
			Weight:      0.9,
			Reliability: 0.92,
		},
		{
			Name:        "Financial Times",
			URL:         "https://www.ft.com/rss/home",
			Kind:        KindFeed,
			Weight:      0.8,
			Reliability: 0.9,
		},
	}
}
