package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// newsContributionCap bounds the summed article contributions before the
// rescale to [0,25].
const newsContributionCap = 6.0

var bareYear = regexp.MustCompile(`^(19|20)\d\d$`)

var stopWords = map[string]bool{
	"will": true, "what": true, "when": true, "where": true, "which": true,
	"with": true, "without": true, "that": true, "this": true, "these": true,
	"those": true, "from": true, "have": true, "has": true, "been": true,
	"before": true, "after": true, "than": true, "more": true, "less": true,
	"they": true, "their": true, "there": true, "about": true, "into": true,
	"over": true, "under": true, "does": true, "would": true, "could": true,
	"should": true, "between": true, "during": true, "other": true, "least": true,
	"most": true, "much": true, "many": true, "some": true, "each": true,
	"such": true, "only": true, "also": true, "being": true, "were": true,
	"year": true, "end": true, "next": true, "reach": true, "above": true,
	"below": true, "market": true, "price": true, "january": true, "february": true,
	"march": true, "april": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// Keywords extracts the lower-cased question tokens used to match news:
// at least four characters, no stop-words, no bare years. Order follows the
// question and duplicates are dropped.
func Keywords(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 4 || stopWords[f] || bareYear.MatchString(f) || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// RecencyWeight discounts older articles. Future timestamps count as fresh.
func RecencyWeight(publishedAt, now time.Time) float64 {
	age := now.Sub(publishedAt).Minutes()
	if age < 0 {
		age = 0
	}
	switch {
	case age <= 60:
		return 1.0
	case age <= 360:
		return 0.7
	case age <= 1440:
		return 0.4
	case age <= 4320:
		return 0.25
	default:
		return 0.1
	}
}

var topTierSources = []string{
	"reuters", "associated press", "bloomberg", "wall street journal", "wsj",
	"financial times", "new york times", "nytimes", "washington post", "bbc",
	"economist",
}

var majorSources = []string{
	"cnn", "cnbc", "politico", "guardian", "axios", "fox news", "nbc", "cbs",
	"abc news", "forbes", "business insider", "the hill", "coindesk",
	"the verge", "techcrunch",
}

// shortCodes are matched exactly since they are too short for substring tests.
var shortCodes = map[string]float64{"ap": 1.0, "ft": 1.0, "nyt": 1.0, "abc": 0.8}

// SourceQualityWeight rates an outlet: 1.0 top tier, 0.8 major, 0.5 otherwise.
func SourceQualityWeight(source string) float64 {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return 0.5
	}
	if w, ok := shortCodes[s]; ok {
		return w
	}
	for _, name := range topTierSources {
		if strings.Contains(s, name) {
			return 1.0
		}
	}
	for _, name := range majorSources {
		if strings.Contains(s, name) {
			return 0.8
		}
	}
	return 0.5
}

// NewsIndex lower-cases the article pool once per scoring pass.
type NewsIndex struct {
	articles []domain.NewsArticle
	texts    []string
}

// NewNewsIndex prepares articles for repeated keyword matching.
func NewNewsIndex(articles []domain.NewsArticle) *NewsIndex {
	idx := &NewsIndex{
		articles: articles,
		texts:    make([]string, len(articles)),
	}
	for i, a := range articles {
		idx.texts[i] = strings.ToLower(a.Text())
	}
	return idx
}

// Len returns the number of indexed articles.
func (idx *NewsIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.articles)
}

// Matching returns the articles mentioning any keyword of question.
func (idx *NewsIndex) Matching(question string) []domain.NewsArticle {
	if idx.Len() == 0 {
		return nil
	}
	kws := Keywords(question)
	if len(kws) == 0 {
		return nil
	}
	var out []domain.NewsArticle
	for i, text := range idx.texts {
		if containsAny(text, kws) {
			out = append(out, idx.articles[i])
		}
	}
	return out
}

// Score returns the recency- and source-weighted news intensity in [0,25].
func (idx *NewsIndex) Score(question string, now time.Time) float64 {
	var sum float64
	for _, a := range idx.Matching(question) {
		sum += RecencyWeight(a.PublishedAt, now) * SourceQualityWeight(a.Source)
	}
	sum = math.Min(sum, newsContributionCap)
	return sum / newsContributionCap * maxNewsScore
}

// NewsScore is the one-shot form of NewsIndex.Score.
func NewsScore(question string, articles []domain.NewsArticle, now time.Time) float64 {
	return NewNewsIndex(articles).Score(question, now)
}

// NewsRelevance counts articles sharing a keyword with the question,
// ignoring recency. It only feeds reasoning text.
func NewsRelevance(question string, articles []domain.NewsArticle) int {
	return len(NewNewsIndex(articles).Matching(question))
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
