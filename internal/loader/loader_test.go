package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type outcome struct {
	records []int
	err     error
	calls   int
}

func (o *outcome) done(records []int, err error) {
	o.records = records
	o.err = err
	o.calls++
}

func TestDelayed(t *testing.T) {
	t.Run("completes once after the delay", func(t *testing.T) {
		clk := clock.Fake(epoch)
		var o outcome
		Delayed[int](clk, time.Second, Fixture(1, 2, 3), o.done)

		clk.Advance(500 * time.Millisecond)
		assert.Zero(t, o.calls)

		clk.Advance(500 * time.Millisecond)
		require.Equal(t, 1, o.calls)
		assert.NoError(t, o.err)
		assert.Equal(t, []int{1, 2, 3}, o.records)

		clk.Advance(time.Hour)
		assert.Equal(t, 1, o.calls)
	})

	t.Run("cancel before the delay prevents completion", func(t *testing.T) {
		clk := clock.Fake(epoch)
		var o outcome
		p := Delayed[int](clk, time.Second, Fixture(1), o.done)

		assert.True(t, p.Cancel())
		assert.False(t, p.Cancel())
		assert.Zero(t, clk.Pending())

		clk.Advance(time.Minute)
		assert.Zero(t, o.calls)
	})

	t.Run("cancel after completion reports false", func(t *testing.T) {
		clk := clock.Fake(epoch)
		var o outcome
		p := Delayed[int](clk, time.Second, Fixture(1), o.done)
		clk.Advance(time.Second)

		assert.False(t, p.Cancel())
		assert.Equal(t, 1, o.calls)
	})

	t.Run("failure is a transport error", func(t *testing.T) {
		clk := clock.Fake(epoch)
		var o outcome
		boom := errors.New("connection refused")
		Delayed[int](clk, time.Second, Func[int](func(context.Context) ([]int, error) {
			return nil, boom
		}), o.done)
		clk.Advance(time.Second)

		require.Equal(t, 1, o.calls)
		assert.ErrorIs(t, o.err, domain.ErrTransport)
		assert.ErrorIs(t, o.err, boom)
		var terr *domain.TransportError
		assert.ErrorAs(t, o.err, &terr)
	})

	t.Run("load sees cancellation", func(t *testing.T) {
		clk := clock.Fake(epoch)
		var o outcome
		var p *Pending
		var sawCancel bool
		p = Delayed[int](clk, time.Second, Func[int](func(ctx context.Context) ([]int, error) {
			p.Cancel()
			sawCancel = ctx.Err() != nil
			return nil, ctx.Err()
		}), o.done)
		clk.Advance(time.Second)

		assert.True(t, sawCancel)
		assert.Zero(t, o.calls)
	})
}

type fakeReader struct {
	data map[string][]string
}

func (f fakeReader) LoadRecords(key string, records any) error {
	v, ok := f.data[key]
	if !ok {
		return domain.ErrNotFound
	}
	*(records.(*[]string)) = v
	return nil
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	reader := fakeReader{data: map[string][]string{"stored": {"a", "b"}}}

	got, err := Snapshot[string]{Store: reader, Key: "stored", Seed: Fixture("seed")}.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = Snapshot[string]{Store: reader, Key: "missing", Seed: Fixture("seed")}.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, got)

	_, err = Snapshot[string]{Store: reader, Key: "missing"}.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFixture_ReturnsCopies(t *testing.T) {
	l := Fixture(1, 2)
	first, err := l.Load(context.Background())
	require.NoError(t, err)
	first[0] = 99

	second, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, second)
}
