package suggest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kb = []domain.Article{
	{ID: 1, Title: "How to Reset Your Password", Content: "To reset your password, go to the login page and click Forgot Password.", Category: "Account Management", Tags: []string{"password", "reset", "login"}},
	{ID: 2, Title: "Browser Compatibility Issues", Content: "Our platform supports Chrome, Firefox, Safari and Edge. Clear your cache if pages fail to load.", Category: "Technical Support", Tags: []string{"browser", "compatibility", "technical"}},
	{ID: 3, Title: "Account Activation Process", Content: "New accounts must be activated through the email link before the first login.", Category: "Account Management", Tags: []string{"activation", "account", "email"}},
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"can", "login", "v2", "app"}, Tokenize("I can't LOGIN to the v2 app!"))
	assert.Empty(t, Tokenize("a I . the"))
}

func TestSearch(t *testing.T) {
	idx := New(kb)
	require.Equal(t, 3, idx.Len())

	got := idx.Search("forgot password", 0)
	require.NotEmpty(t, got)
	assert.Equal(t, int64(1), got[0].ArticleID)
	assert.Equal(t, "How to Reset Your Password", got[0].Title)

	got = idx.Search("browser cache", 0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ArticleID)

	assert.Empty(t, idx.Search("printer", 0))
	assert.Empty(t, idx.Search("the", 0))
}

func TestSearch_RankingAndLimit(t *testing.T) {
	idx := New(kb)
	got := idx.Search("account login", 0)
	require.Len(t, got, 2)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		assert.GreaterOrEqual(t, got[i-1].Relevance, got[i].Relevance)
	}
	for _, s := range got {
		assert.True(t, s.Relevance > 0 && s.Relevance <= 100, "relevance %d", s.Relevance)
	}

	assert.Len(t, idx.Search("account login", 1), 1)
}

func TestForTicket(t *testing.T) {
	idx := New(kb)
	ticket := domain.Ticket{
		Title:       "Login issues with new account",
		Description: "Customer cannot login after creating a new account. Activation email never arrived.",
	}
	got := idx.ForTicket(ticket, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, int64(3), got[0].ArticleID)
}

func TestEmptyIndex(t *testing.T) {
	idx := New(nil)
	assert.Empty(t, idx.Search("password", 5))
}

func TestRelevance(t *testing.T) {
	assert.Equal(t, 0, Relevance(0))
	assert.Equal(t, 0, Relevance(-1))
	assert.Equal(t, 63, Relevance(relevanceScale))
	assert.Less(t, Relevance(1), Relevance(10))
	assert.LessOrEqual(t, Relevance(1000), 100)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("short\n\n  text", 20))
	assert.Equal(t, "one two...", Excerpt("one two three", 10))
	assert.Equal(t, "abcdefghij...", Excerpt("abcdefghijklmnop", 10))

	accented := Excerpt(strings.Repeat("é", 100), 141)
	assert.True(t, utf8.ValidString(accented))
	assert.Equal(t, strings.Repeat("é", 70)+"...", accented)
}
