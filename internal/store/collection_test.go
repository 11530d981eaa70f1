package store

import (
	"testing"
	"time"

	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newArticles(t *testing.T) (*Collection[domain.Article, domain.ArticleForm], *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	return NewCollection[domain.Article, domain.ArticleForm](domain.ArticleKind{}, clk), clk
}

func newTickets(t *testing.T) (*Collection[domain.Ticket, domain.TicketForm], *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	return NewCollection[domain.Ticket, domain.TicketForm](domain.TicketKind{Agent: "John Doe"}, clk), clk
}

func TestCollection_Create(t *testing.T) {
	t.Run("assigns unique ids and prepends", func(t *testing.T) {
		c, clk := newArticles(t)
		c.Replace([]domain.Article{{ID: 1, Title: "seed"}})

		first := c.Create(domain.ArticleForm{Title: "first"})
		clk.Advance(time.Millisecond)
		second := c.Create(domain.ArticleForm{Title: "second"})

		assert.NotEqual(t, first.ID, second.ID)
		assert.NotEqual(t, int64(1), first.ID)

		list := c.List()
		require.Len(t, list, 3)
		assert.Equal(t, "second", list[0].Title)
		assert.Equal(t, "first", list[1].Title)
		assert.Equal(t, "seed", list[2].Title)
	})

	t.Run("ids stay unique when the clock does not move", func(t *testing.T) {
		c, _ := newArticles(t)
		seen := map[int64]bool{}
		for range 5 {
			a := c.Create(domain.ArticleForm{Title: "same millisecond"})
			assert.False(t, seen[a.ID], "duplicate id %d", a.ID)
			seen[a.ID] = true
		}
	})

	t.Run("ids stay above loaded ids from the future", func(t *testing.T) {
		c, _ := newArticles(t)
		future := epoch.Add(time.Hour).UnixMilli()
		c.Replace([]domain.Article{{ID: future}})

		a := c.Create(domain.ArticleForm{Title: "new"})
		assert.Greater(t, a.ID, future)
	})

	t.Run("sets timestamps and zero views", func(t *testing.T) {
		c, _ := newArticles(t)
		a := c.Create(domain.ArticleForm{Title: "t", Content: "c", Category: "x"})
		assert.Equal(t, epoch, a.CreatedAt)
		assert.Equal(t, epoch, a.UpdatedAt)
		assert.Zero(t, a.Views)
	})

	t.Run("normalizes tags", func(t *testing.T) {
		c, _ := newArticles(t)
		a := c.Create(domain.ArticleForm{Tags: " a, b ,, c "})
		assert.Equal(t, []string{"a", "b", "c"}, a.Tags)
	})

	t.Run("list includes the new record exactly once", func(t *testing.T) {
		c, _ := newTickets(t)
		tk := c.Create(domain.TicketForm{Title: "t", Description: "d"})
		count := 0
		for _, r := range c.List() {
			if r.ID == tk.ID {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestCollection_Update(t *testing.T) {
	t.Run("preserves id, createdAt and views", func(t *testing.T) {
		c, clk := newArticles(t)
		a := c.Create(domain.ArticleForm{Title: "old", Tags: "x"})
		_, err := c.RecordView(a.ID)
		require.NoError(t, err)

		clk.Advance(time.Minute)
		got, err := c.Update(a.ID, domain.ArticleForm{Title: "new", Tags: "y, z"})
		require.NoError(t, err)

		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.CreatedAt, got.CreatedAt)
		assert.Equal(t, 1, got.Views)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, []string{"y", "z"}, got.Tags)
		assert.True(t, got.UpdatedAt.After(a.UpdatedAt))
	})

	t.Run("keeps position in the list", func(t *testing.T) {
		c, _ := newArticles(t)
		c.Replace([]domain.Article{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}, {ID: 3, Title: "c"}})

		_, err := c.Update(2, domain.ArticleForm{Title: "B"})
		require.NoError(t, err)

		list := c.List()
		assert.Equal(t, []int64{1, 2, 3}, []int64{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, "B", list[1].Title)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		c, _ := newArticles(t)
		_, err := c.Update(42, domain.ArticleForm{Title: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("updatedAt never goes behind createdAt", func(t *testing.T) {
		c, clk := newTickets(t)
		tk := c.Create(domain.TicketForm{Title: "t", Description: "d"})
		clk.Set(epoch.Add(-time.Hour))

		got, err := c.Update(tk.ID, domain.TicketForm{Title: "t2", Description: "d"})
		require.NoError(t, err)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})
}

func TestCollection_Delete(t *testing.T) {
	c, _ := newTickets(t)
	tk := c.Create(domain.TicketForm{Title: "t", Description: "d"})

	require.NoError(t, c.Delete(tk.ID))
	assert.Zero(t, c.Len())

	assert.ErrorIs(t, c.Delete(tk.ID), domain.ErrNotFound)
	_, err := c.Update(tk.ID, domain.TicketForm{Title: "t"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.Get(tk.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollection_RecordView(t *testing.T) {
	t.Run("increments views without touching updatedAt", func(t *testing.T) {
		c, clk := newArticles(t)
		a := c.Create(domain.ArticleForm{Title: "t"})
		clk.Advance(time.Hour)

		for range 3 {
			_, err := c.RecordView(a.ID)
			require.NoError(t, err)
		}
		got, err := c.Get(a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Views)
		assert.Equal(t, a.UpdatedAt, got.UpdatedAt)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		c, _ := newArticles(t)
		_, err := c.RecordView(7)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("tickets have no view counter", func(t *testing.T) {
		c, _ := newTickets(t)
		tk := c.Create(domain.TicketForm{Title: "t", Description: "d"})
		_, err := c.RecordView(tk.ID)
		assert.ErrorIs(t, err, ErrNotViewable)
	})
}

func TestCollection_Modify(t *testing.T) {
	c, clk := newTickets(t)
	tk := c.Create(domain.TicketForm{Title: "t", Description: "d"})
	clk.Advance(time.Minute)

	got, err := c.Modify(tk.ID, func(t domain.Ticket) (domain.Ticket, error) {
		t.Assignee = "Jane Smith"
		return t, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", got.Assignee)
	assert.Equal(t, epoch.Add(time.Minute), got.UpdatedAt)

	_, err = c.Modify(tk.ID, func(t domain.Ticket) (domain.Ticket, error) {
		t.ID = 99
		return t, nil
	})
	assert.Error(t, err)

	unchanged, err := c.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, got, unchanged)
}
