package standings

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/testhelpers"
)

func toy(ctx context.Context, opts ...outcomes.Option) (*Standings, error) {
	b, table, entries := testhelpers.Toy()
	e, err := outcomes.NewEngine(b, table, entries, opts...)
	if err != nil {
		return nil, err
	}
	d, err := e.Compute(ctx, testhelpers.ToyGame)
	if err != nil {
		return nil, err
	}
	return Aggregate(d, entries), nil
}

func toyStandings(t *testing.T) *Standings {
	s, err := toy(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAggregateToy(t *testing.T) {
	is := is.New(t)
	s := toyStandings(t)
	is.Equal(s.Names, []string{"A", "B"})
	assert.InDelta(t, testhelpers.ToyFirstA, s.First[0], 1e-6)
	assert.InDelta(t, testhelpers.ToyFirstB, s.First[1], 1e-6)
	assert.InDelta(t, 1.0, s.First[0]+s.First[1], 1e-9)
	assert.InDelta(t, s.First[0], s.Second[1], 1e-9)
	is.Equal(s.Leader(), 1)
	is.Equal(len(s.Eliminated()), 0)

	sorted := s.Sorted()
	is.Equal(sorted[0].Name, "B")
	is.Equal(sorted[1].Name, "A")
}

func TestEliminated(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	is.NoErr(b.SetWinner(0, 1))
	e, err := outcomes.NewEngine(b, table, entries)
	is.NoErr(err)
	d, err := e.Compute(context.Background(), testhelpers.ToyGame)
	is.NoErr(err)
	s := Aggregate(d, entries)
	is.Equal(s.Eliminated(), []int{0})
	is.Equal(s.Leader(), 1)
}

func TestMargins(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	e, err := outcomes.NewEngine(b, table, entries)
	is.NoErr(err)
	d, err := e.Compute(context.Background(), testhelpers.ToyGame)
	is.NoErr(err)
	ms := Margins(d)
	var total float64
	for i, m := range ms {
		total += m.Prob
		if i > 0 {
			is.True(ms[i-1].Points < m.Points)
		}
		is.True(m.Points%10 == 0)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	// A wins by 30 when 0 takes games 0 and 32; B wins by 30 when 1 and 2
	// both advance and 2 takes game 32.
	var thirty float64
	for _, m := range ms {
		if m.Points == 30 {
			thirty = m.Prob
		}
	}
	assert.InDelta(t, 0.6*(0.7*0.55+0.3*0.55/1.05)+0.4*0.7*0.45/0.95, thirty, 1e-9)
}

func TestReplicate(t *testing.T) {
	is := is.New(t)
	est, err := Replicate(context.Background(), 4, 2, func(ctx context.Context, run int) (*Standings, error) {
		return toy(ctx, outcomes.WithSeed(uint64(run)))
	})
	is.NoErr(err)
	is.Equal(est.First[0].Count(), 4)
	// The toy pool is small enough to be exact, so every run agrees.
	assert.InDelta(t, testhelpers.ToyFirstA, est.First[0].Mean(), 1e-9)
	assert.InDelta(t, 0, est.First[0].StandardError(), 1e-9)

	boom := errors.New("boom")
	_, err = Replicate(context.Background(), 3, 1, func(ctx context.Context, run int) (*Standings, error) {
		return nil, boom
	})
	is.True(errors.Is(err, boom))

	_, err = Replicate(context.Background(), 0, 1, nil)
	is.True(err != nil)
}
