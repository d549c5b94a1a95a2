// Package kb searches help articles and the FAQ.
package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"legacyplanner.org/internal/obs"
)

var ErrInvalidInput = errors.New("kb: invalid input")

const (
	defaultLimit   = 5
	maxQueryLength = 200
)

type Article struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type FAQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords,omitempty"`
}

// Snippet is one ranked search hit.
type Snippet struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

type Result struct {
	Query string    `json:"query"`
	KB    []Snippet `json:"kb"`
	FAQ   []Snippet `json:"faq"`
}

type Store interface {
	// SearchArticles returns up to limit articles ranked by relevance to query.
	SearchArticles(ctx context.Context, query string, limit int) ([]Snippet, error)
	ListFAQs(ctx context.Context) ([]FAQ, error)
}

type Service struct {
	store Store
	limit int
	log   *zap.Logger
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("kb store is required")
	}
	return &Service{store: store, limit: defaultLimit, log: obs.Logger()}, nil
}

// Search runs the article and FAQ lookups concurrently. A failing source is
// logged and yields no hits; the other source is still returned.
func (s *Service) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if len(query) > maxQueryLength {
		return Result{}, fmt.Errorf("%w: query is too long", ErrInvalidInput)
	}
	res := Result{Query: query, KB: []Snippet{}, FAQ: []Snippet{}}

	var g errgroup.Group
	g.Go(func() error {
		hits, err := s.store.SearchArticles(ctx, query, s.limit)
		if err != nil {
			s.log.Warn("kb article search failed", zap.Error(err))
			return nil
		}
		if hits != nil {
			res.KB = hits
		}
		return nil
	})
	g.Go(func() error {
		faqs, err := s.store.ListFAQs(ctx)
		if err != nil {
			s.log.Warn("faq load failed", zap.Error(err))
			return nil
		}
		res.FAQ = MatchFAQ(faqs, query, s.limit)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true, "what": true,
	"how": true, "can": true, "are": true, "with": true, "does": true, "who": true,
	"when": true, "where": true, "why": true, "this": true, "that": true, "have": true,
}

// Terms splits text into lower-case search terms, dropping short words and stopwords.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// MatchFAQ scores each FAQ by query terms: two points per keyword hit, one per
// term found in the question. Entries scoring zero are dropped.
func MatchFAQ(faqs []FAQ, query string, limit int) []Snippet {
	terms := Terms(query)
	out := []Snippet{}
	if len(terms) == 0 {
		return out
	}
	for _, f := range faqs {
		keywords := map[string]bool{}
		for _, k := range f.Keywords {
			keywords[strings.ToLower(strings.TrimSpace(k))] = true
		}
		question := map[string]bool{}
		for _, t := range Terms(f.Question) {
			question[t] = true
		}
		score := 0.0
		for _, t := range terms {
			if keywords[t] {
				score += 2
			}
			if question[t] {
				score++
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, Snippet{ID: f.ID, Title: f.Question, Excerpt: Excerpt(f.Answer, 240), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Title < out[j].Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Excerpt shortens text to at most n runes, cutting at a word boundary.
func Excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// InMemory implements Store with term-frequency ranking.
type InMemory struct {
	mu       sync.RWMutex
	articles []Article
	faqs     []FAQ
}

func NewInMemory(articles []Article, faqs []FAQ) *InMemory {
	return &InMemory{
		articles: append([]Article(nil), articles...),
		faqs:     append([]FAQ(nil), faqs...),
	}
}

func (m *InMemory) SearchArticles(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Terms(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Snippet{}
	for _, a := range m.articles {
		title := strings.ToLower(a.Title)
		body := strings.ToLower(a.Body)
		score := 0.0
		for _, t := range terms {
			score += 2 * float64(strings.Count(title, t))
			score += float64(strings.Count(body, t))
		}
		if score > 0 {
			out = append(out, Snippet{ID: a.ID, Title: a.Title, Excerpt: Excerpt(a.Body, 240), Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemory) ListFAQs(ctx context.Context) ([]FAQ, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FAQ(nil), m.faqs...), nil
}
