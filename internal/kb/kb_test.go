package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFAQs = []FAQ{
	{ID: "f1", Question: "Can I change my plan later?", Answer: "Yes, every section can be edited at any time.", Keywords: []string{"edit", "change"}},
	{ID: "f2", Question: "How do I print my plan?", Answer: "Use the printable workbook from your dashboard.", Keywords: []string{"print", "printable", "pdf"}},
	{ID: "f3", Question: "Who can see my plan?", Answer: "Only you, unless you share it.", Keywords: []string{"privacy", "share"}},
}

var testArticles = []Article{
	{ID: "a1", Title: "Printing your plan", Body: "Open the dashboard and choose print. The printable version includes every section."},
	{ID: "a2", Title: "Pet care wishes", Body: "Record who should care for your pets."},
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"print", "plan"}, Terms("How do I PRINT my plan, plan?"))
	assert.Empty(t, Terms("a an to"))
}

func TestMatchFAQScoresKeywordsAboveQuestionText(t *testing.T) {
	hits := MatchFAQ(testFAQs, "print plan", 5)
	require.NotEmpty(t, hits)
	assert.Equal(t, "f2", hits[0].ID)
	assert.Equal(t, 4.0, hits[0].Score)
	for _, h := range hits[1:] {
		assert.Less(t, h.Score, hits[0].Score)
	}
	assert.Empty(t, MatchFAQ(testFAQs, "zebra", 5))
	assert.Len(t, MatchFAQ(testFAQs, "plan", 2), 2)
}

func TestSearch(t *testing.T) {
	svc, err := NewService(NewInMemory(testArticles, testFAQs))
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), "  print  ")
	require.NoError(t, err)
	assert.Equal(t, "print", res.Query)
	require.NotEmpty(t, res.KB)
	assert.Equal(t, "a1", res.KB[0].ID)
	require.NotEmpty(t, res.FAQ)
	assert.Equal(t, "f2", res.FAQ[0].ID)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc, err := NewService(NewInMemory(nil, nil))
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type brokenArticles struct{ *InMemory }

func (brokenArticles) SearchArticles(context.Context, string, int) ([]Snippet, error) {
	return nil, errors.New("ts_rank: relation missing")
}

func TestSearchDegradesWhenOneSourceFails(t *testing.T) {
	svc, err := NewService(brokenArticles{NewInMemory(nil, testFAQs)})
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), "privacy")
	require.NoError(t, err)
	assert.NotNil(t, res.KB)
	assert.Empty(t, res.KB)
	require.Len(t, res.FAQ, 1)
	assert.Equal(t, "f3", res.FAQ[0].ID)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("short   text", 50))
	assert.Equal(t, "alpha beta…", Excerpt("alpha beta gamma", 12))
}
