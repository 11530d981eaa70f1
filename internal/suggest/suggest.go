// Package suggest ranks knowledge-base articles against a ticket with
// Okapi BM25. Fields are weighted by repeating their tokens, which is
// accurate enough for a knowledge base of a few thousand articles.
//
// An Index is immutable once built and safe for concurrent reads.
package suggest

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pbaille/helpdesk/internal/domain"
)

const (
	k1 = 1.2
	b  = 0.75

	// floorIDF keeps terms present in most articles from scoring zero
	floorIDF = 0.25

	// relevanceScale is the score at which relevance reaches ~63%
	relevanceScale = 4.0

	excerptLen = 140
)

// Field weights of an article
const (
	WeightTitle    = 3
	WeightTags     = 2
	WeightCategory = 1
	WeightContent  = 1
)

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped from both articles and queries
var stopwords = map[string]bool{
	"the": true, "and": true, "to": true, "of": true, "in": true, "on": true,
	"is": true, "it": true, "for": true, "my": true, "with": true, "an": true,
	"be": true, "not": true, "after": true, "have": true, "would": true,
	"like": true, "your": true, "this": true, "that": true, "are": true,
}

type doc struct {
	article domain.Article
	tf      map[string]int
	length  int
}

// Index is a BM25 index over articles
type Index struct {
	docs   []doc
	avgLen float64
	idf    map[string]float64
}

// New indexes articles
func New(articles []domain.Article) *Index {
	idx := &Index{
		docs: make([]doc, len(articles)),
		idf:  make(map[string]float64),
	}

	df := make(map[string]int)
	total := 0
	for i, a := range articles {
		tokens := articleTokens(a)
		tf := make(map[string]int)
		for _, tok := range tokens {
			if tf[tok] == 0 {
				df[tok]++
			}
			tf[tok]++
		}
		idx.docs[i] = doc{article: a, tf: tf, length: len(tokens)}
		total += len(tokens)
	}
	if len(articles) > 0 {
		idx.avgLen = float64(total) / float64(len(articles))
	}

	n := float64(len(articles))
	for term, freq := range df {
		idf := math.Log(1 + (n-float64(freq)+0.5)/(float64(freq)+0.5))
		idx.idf[term] = max(idf, floorIDF)
	}
	return idx
}

// Len returns the number of indexed articles
func (idx *Index) Len() int { return len(idx.docs) }

// Search returns up to limit articles matching query, best first. A
// limit of zero or less returns every match. Equal scores keep index
// order.
func (idx *Index) Search(query string, limit int) []domain.Suggestion {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return []domain.Suggestion{}
	}

	out := []domain.Suggestion{}
	for _, d := range idx.docs {
		score := idx.score(d, terms)
		if score <= 0 {
			continue
		}
		out = append(out, domain.Suggestion{
			ArticleID: d.article.ID,
			Title:     d.article.Title,
			Excerpt:   Excerpt(d.article.Content, excerptLen),
			Relevance: Relevance(score),
			Score:     score,
		})
	}

	slices.SortStableFunc(out, func(x, y domain.Suggestion) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ForTicket suggests articles for a ticket using its title and
// description as the query
func (idx *Index) ForTicket(t domain.Ticket, limit int) []domain.Suggestion {
	return idx.Search(t.Title+" "+t.Description, limit)
}

func (idx *Index) score(d doc, terms []string) float64 {
	if d.length == 0 {
		return 0
	}
	var score float64
	norm := k1 * (1 - b + b*float64(d.length)/idx.avgLen)
	for _, term := range terms {
		tf := float64(d.tf[term])
		if tf == 0 {
			continue
		}
		score += idx.idf[term] * tf * (k1 + 1) / (tf + norm)
	}
	return score
}

func articleTokens(a domain.Article) []string {
	var tokens []string
	add := func(text string, weight int) {
		toks := Tokenize(text)
		for range weight {
			tokens = append(tokens, toks...)
		}
	}
	add(a.Title, WeightTitle)
	add(strings.Join(a.Tags, " "), WeightTags)
	add(a.Category, WeightCategory)
	add(a.Content, WeightContent)
	return tokens
}

// Tokenize lowercases text and splits it into alphanumeric runs,
// dropping single characters and stopwords
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenRE.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Relevance maps an unbounded BM25 score onto 0-100
func Relevance(score float64) int {
	if score <= 0 {
		return 0
	}
	return int(math.Round(100 * (1 - math.Exp(-score/relevanceScale))))
}

// Excerpt collapses whitespace and cuts text at a word boundary
func Excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	cut := strings.LastIndexByte(text[:n], ' ')
	if cut <= 0 {
		cut = n
	}
	return text[:cut] + "..."
}
