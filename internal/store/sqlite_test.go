package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "helpdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLite_PutGet(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Get("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, db.Put("a", []byte("one")))
	require.NoError(t, db.Put("a", []byte("two")))
	require.NoError(t, db.Put("b", []byte("three")))

	got, err := db.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	keys, err := db.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, db.Delete("a"))
	require.NoError(t, db.Delete("a"))
	_, err = db.Get("a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLite_Records(t *testing.T) {
	db := newTestDB(t)
	created := time.Date(2024, 1, 10, 10, 0, 0, 123456789, time.UTC)

	articles := []domain.Article{
		{
			ID:        1,
			Title:     "How to Reset Your Password",
			Content:   "Go to the login page",
			Category:  "Account Management",
			Tags:      []string{"password", "reset"},
			CreatedAt: created,
			UpdatedAt: created.Add(time.Hour),
			Views:     245,
		},
	}
	require.NoError(t, db.SaveRecords(KeyArticles, articles))

	var got []domain.Article
	require.NoError(t, db.LoadRecords(KeyArticles, &got))
	require.Len(t, got, 1)
	assert.Equal(t, articles[0].Title, got[0].Title)
	assert.Equal(t, articles[0].Tags, got[0].Tags)
	assert.Equal(t, 245, got[0].Views)
	assert.True(t, created.Equal(got[0].CreatedAt), "created_at lost precision: %v", got[0].CreatedAt)

	var none []domain.Ticket
	assert.ErrorIs(t, db.LoadRecords(KeyTickets, &none), domain.ErrNotFound)
}
