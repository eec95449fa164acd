package news

import (
	"math"
	"strings"
	"unicode"

	"fx-intel-bot/internal/types"
)

// Scorer computes relevance and sentiment for articles. It is stateless and
// safe for concurrent use.
type Scorer struct {
	lex *Lexicon
}

func NewScorer() *Scorer {
	return &Scorer{lex: DefaultLexicon()}
}

// NewScorerWithLexicon builds a scorer over a custom lexicon. The blend
// weights stay fixed, only the word lists change.
func NewScorerWithLexicon(lex *Lexicon) *Scorer {
	return &Scorer{lex: lex}
}

// Score computes relevance and sentiment over the article's title and
// description.
func (s *Scorer) Score(article types.Article) types.ScoredArticle {
	text := article.Title
	if article.Description != "" {
		text += " " + article.Description
	}
	return types.ScoredArticle{
		Article:   article,
		Relevance: s.Relevance(text),
		Sentiment: s.Sentiment(text),
	}
}

// Relevance scores how forex-relevant a text is, in [0,1]. Each matched
// currency keyword adds 0.15, central bank 0.2, economic indicator 0.15
// (capped at 0.3 for the category), market event 0.1. Keywords match as
// substrings, once per keyword.
func (s *Scorer) Relevance(text string) float64 {
	t := strings.ToLower(text)
	score := 0.15 * float64(countHits(t, s.lex.Currency))
	score += 0.2 * float64(countHits(t, s.lex.CentralBank))
	econ := 0.15 * float64(countHits(t, s.lex.Economic))
	if econ > 0.3 {
		econ = 0.3
	}
	score += econ
	score += 0.1 * float64(countHits(t, s.lex.Events))
	return clamp(score, 0.0, 1.0)
}

// Sentiment scores a text in [-1,1]. The result blends token polarity (0.4),
// a valence-shifted variant of it (0.4) and the fixed keyword buckets (0.2).
// A text with no sentiment-bearing words scores 0.
func (s *Scorer) Sentiment(text string) float64 {
	t := strings.ToLower(text)
	tokens := tokenize(t)
	p := s.polarity(tokens)
	v := s.valence(tokens)
	b := s.bucketScore(t)
	return clamp(0.4*p+0.4*v+0.2*b, -1.0, 1.0)
}

func (s *Scorer) polarity(tokens []string) float64 {
	pos, neg := 0, 0
	for _, tok := range tokens {
		switch s.classify(tok) {
		case 1:
			pos++
		case -1:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0.0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// valence reweighs each sentiment word by the shifters in the three tokens
// before it: a negator flips the sign, an intensifier scales by 1.5, a
// diminisher by 0.5.
func (s *Scorer) valence(tokens []string) float64 {
	var sum, total float64
	for i, tok := range tokens {
		cls := s.classify(tok)
		if cls == 0 {
			continue
		}
		w := float64(cls)
		for j := i - 1; j >= 0 && j >= i-3; j-- {
			prev := tokens[j]
			if s.lex.Negators[prev] {
				w = -w
			} else if s.lex.Intensifiers[prev] {
				w *= 1.5
			} else if s.lex.Diminishers[prev] {
				w *= 0.5
			}
		}
		sum += w
		total += math.Abs(w)
	}
	if total == 0 {
		return 0.0
	}
	return sum / total
}

func (s *Scorer) bucketScore(t string) float64 {
	groups := []struct {
		words []string
		val   float64
	}{
		{s.lex.VeryPositive, 1.0},
		{s.lex.Positive, 0.5},
		{s.lex.NeutralWords, 0.0},
		{s.lex.Negative, -0.6},
		{s.lex.VeryNegative, -1.0},
	}
	var sum float64
	var n int
	for _, g := range groups {
		for _, w := range g.words {
			if strings.Contains(t, w) {
				sum += g.val
				n++
			}
		}
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

func (s *Scorer) classify(tok string) int {
	for _, c := range stemCandidates(tok) {
		if s.lex.PolarityPositive[c] {
			return 1
		}
		if s.lex.PolarityNegative[c] {
			return -1
		}
	}
	return 0
}

func countHits(t string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			n++
		}
	}
	return n
}

func tokenize(t string) []string {
	fields := strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, "'", "")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// stemCandidates returns the token plus light suffix-stripped variants so
// inflected forms hit the lexicon without a full stemmer.
func stemCandidates(w string) []string {
	cands := []string{w}
	n := len(w)
	switch {
	case n > 5 && strings.HasSuffix(w, "ing"):
		cands = append(cands, w[:n-3], w[:n-3]+"e")
	case n > 4 && strings.HasSuffix(w, "ed"):
		cands = append(cands, w[:n-2], w[:n-1])
	case n > 4 && strings.HasSuffix(w, "es"):
		cands = append(cands, w[:n-1], w[:n-2])
	case n > 3 && strings.HasSuffix(w, "s"):
		cands = append(cands, w[:n-1])
	}
	return cands
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
