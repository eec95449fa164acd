package news

// Lexicon holds the word lists the scorer matches against. All entries are
// lowercase. Multi-word entries are matched as substrings of the whole text,
// single tokens through the tokenizer.
type Lexicon struct {
	// Relevance keyword categories.
	Currency    []string
	CentralBank []string
	Economic    []string
	Events      []string

	// Sentiment buckets with fixed scores.
	VeryPositive []string
	Positive     []string
	NeutralWords []string
	Negative     []string
	VeryNegative []string

	// Polarity word sets for the token-level components.
	PolarityPositive map[string]bool
	PolarityNegative map[string]bool

	// Valence shifters.
	Negators     map[string]bool
	Intensifiers map[string]bool
	Diminishers  map[string]bool
}

// DefaultLexicon returns the built-in financial news lexicon.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Currency: []string{
			"dollar", "euro", "pound", "yen", "currency", "exchange", "forex", "fx",
		},
		CentralBank: []string{
			"fed", "federal reserve", "ecb", "bank of england", "boj",
			"central bank", "monetary policy", "interest rate",
		},
		Economic: []string{
			"gdp", "inflation", "employment", "unemployment", "trade",
			"economic", "economy",
		},
		Events: []string{
			"trade war", "brexit", "election", "political", "war",
			"conflict", "sanctions",
		},

		VeryPositive: []string{
			"surge", "soar", "boom", "explode", "skyrocket", "rally",
			"breakthrough", "triumph",
		},
		Positive: []string{
			"rise", "gain", "grow", "increase", "advance", "improve",
			"strengthen", "optimistic", "bullish",
		},
		NeutralWords: []string{
			"stable", "steady", "unchanged", "maintain", "continue", "persist",
		},
		Negative: []string{
			"fall", "drop", "decline", "decrease", "weaken", "worry",
			"concern", "bearish", "pessimistic",
		},
		VeryNegative: []string{
			"crash", "plunge", "collapse", "plummet", "devastate",
			"disaster", "crisis", "panic",
		},

		PolarityPositive: wordSet(
			"surge", "soar", "boom", "skyrocket", "rally", "breakthrough",
			"triumph", "rise", "gain", "grow", "increase", "advance",
			"improve", "strengthen", "optimistic", "bullish", "rebound",
			"recover", "recovery", "upbeat", "strong", "growth", "boost",
			"high", "jump", "climb", "outperform", "beat", "upgrade",
		),
		PolarityNegative: wordSet(
			"crash", "plunge", "collapse", "plummet", "devastate", "disaster",
			"crisis", "panic", "fall", "drop", "decline", "decrease",
			"weaken", "worry", "concern", "bearish", "pessimistic", "fear",
			"weak", "slump", "recession", "warn", "warning", "sell",
			"selloff", "loss", "tumble", "turmoil", "downturn", "slide",
			"miss", "downgrade", "risk", "default", "sanction",
		),

		Negators: wordSet(
			"not", "no", "never", "none", "neither", "nor", "without",
			"hardly", "barely", "dont", "doesnt", "didnt", "wont", "cant",
			"couldnt", "wouldnt", "shouldnt", "isnt", "arent", "wasnt", "werent",
		),
		Intensifiers: wordSet(
			"very", "extremely", "sharply", "significantly", "strongly",
			"massively", "hugely", "dramatically", "deeply",
		),
		Diminishers: wordSet(
			"slightly", "somewhat", "marginally", "mildly", "modestly",
		),
	}
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
