package filter

import (
	"strings"
	"testing"

	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tickets = []domain.Ticket{
	{ID: 1, Title: "Login issues with new account", Description: "Unable to login after creating account", Status: "open", Priority: "high", Assignee: "John Doe"},
	{ID: 2, Title: "Feature request: Dark mode", Description: "Would like to have a dark mode option", Status: "in-progress", Priority: "medium", Assignee: "Jane Smith"},
	{ID: 3, Title: "Bug: Export function not working", Description: "Export to CSV returns empty file", Status: "resolved", Priority: "high", Assignee: "Mike Johnson"},
	{ID: 4, Title: "Password reset email missing", Description: "No email after reset", Status: "resolved", Priority: "low", Assignee: "John Doe"},
}

var articles = []domain.Article{
	{ID: 1, Title: "How to Reset Your Password", Content: "Go to the login page", Category: "Account Management", Tags: []string{"password", "reset", "login"}},
	{ID: 2, Title: "Browser Compatibility Issues", Content: "Supported browsers", Category: "Technical Support", Tags: []string{"browser", "compatibility", "technical"}},
	{ID: 3, Title: "Account Activation Process", Content: "Check your inbox", Category: "Account Management", Tags: []string{"activation", "account", "email"}},
}

func ids[R interface{ RecordID() int64 }](records []R) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.RecordID()
	}
	return out
}

func TestApply_EmptyQueryIsIdentity(t *testing.T) {
	assert.Equal(t, tickets, Apply(tickets, "", nil))
	assert.Equal(t, articles, Apply(articles, "", Category(All)))
}

func TestApply_Query(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"title match", "dark", []int64{2}},
		{"case insensitive", "EXPORT", []int64{3}},
		{"description match", "csv", []int64{3}},
		{"multiple matches keep order", "login", []int64{1}},
		{"priority not searched", "high", []int64{}},
		{"assignee not searched", "mike", []int64{}},
		{"status match", "resolved", []int64{3, 4}},
		{"no match", "printer", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(tickets, tt.query, nil)))
		})
	}
}

func TestApply_ArticleTagsMatchIndividually(t *testing.T) {
	assert.Equal(t, []int64{3}, ids(Apply(articles, "EMAIL", nil)))
	assert.Equal(t, []int64{1, 3}, ids(Apply(articles, "account", nil)))
	assert.Equal(t, []int64{2}, ids(Apply(articles, "technical", nil)))
}

func TestApply_MatchProperty(t *testing.T) {
	for _, query := range []string{"a", "login", "Account", "x", "reset", "ISSUES"} {
		kept := Apply(articles, query, nil)
		keptIDs := map[int64]bool{}
		for _, a := range kept {
			keptIDs[a.ID] = true
		}
		for _, a := range articles {
			found := false
			for _, f := range a.SearchFields() {
				if strings.Contains(strings.ToLower(f), strings.ToLower(query)) {
					found = true
				}
			}
			assert.Equal(t, found, keptIDs[a.ID], "query %q article %d", query, a.ID)
		}
	}
}

func TestApply_Predicate(t *testing.T) {
	t.Run("status subset preserves relative order", func(t *testing.T) {
		got := Apply(tickets, "", Status("resolved"))
		assert.Equal(t, []int64{3, 4}, ids(got))
	})

	t.Run("all sentinel disables predicate", func(t *testing.T) {
		assert.Nil(t, Status(All))
		assert.Len(t, Apply(tickets, "", Status(All)), len(tickets))
	})

	t.Run("query and predicate combine with AND", func(t *testing.T) {
		got := Apply(tickets, "login", Status("open"))
		assert.Equal(t, []int64{1}, ids(got))
	})

	t.Run("and of predicates", func(t *testing.T) {
		got := Apply(tickets, "", And(Status("resolved"), Priority("high")))
		assert.Equal(t, []int64{3}, ids(got))

		assert.Nil(t, And(Status(All), Priority("")))
	})

	t.Run("category", func(t *testing.T) {
		got := Apply(articles, "", Category("Account Management"))
		assert.Equal(t, []int64{1, 3}, ids(got))
	})
}

func TestSeq_Restartable(t *testing.T) {
	seq := Seq(tickets, "o", Status("resolved"))

	var first, second []int64
	for tk := range seq {
		first = append(first, tk.ID)
	}
	for tk := range seq {
		second = append(second, tk.ID)
	}
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// stops early when the consumer breaks
	n := 0
	for range Seq(tickets, "", nil) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(articles[0], "PASSWORD"))
	assert.True(t, Matches(articles[0], ""))
	assert.False(t, Matches(articles[0], "browser"))
}
