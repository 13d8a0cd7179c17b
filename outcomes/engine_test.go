package outcomes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
	"github.com/domino14/bracketsim/testhelpers"
)

// placeProbs reads first and second place probabilities straight off a
// distribution.
func placeProbs(d *Distribution) (first, second []float64) {
	first = make([]float64, d.N)
	second = make([]float64, d.N)
	for _, b := range d.Branches {
		for t, p := range b.Scores {
			first[t.Winner(d.N)] += p
			if r := t.RunnerUp(d.N); r >= 0 {
				second[r] += p
			}
		}
	}
	return first, second
}

func randomPool(seed byte, n int) []bracket.Entry {
	rng := testhelpers.Rng(seed)
	entries := make([]bracket.Entry, n)
	for i := range entries {
		entries[i] = testhelpers.RandomEntry(rng, fmt.Sprintf("entry%d", i))
	}
	return entries
}

func TestBaseGame(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	e, err := NewEngine(b, table, entries, WithSeed(1))
	is.NoErr(err)
	d, err := e.Compute(context.Background(), 0)
	is.NoErr(err)
	is.Equal(len(d.Branches), 2)
	assert.InDelta(t, 0.6, d.TeamProb(0), 1e-12)
	assert.InDelta(t, 0.4, d.TeamProb(1), 1e-12)
	assert.InDelta(t, 1.0, d.Total(), 1e-12)
	// Normalized tuples: whoever picked the winner leads by one point.
	for _, br := range d.Branches {
		is.Equal(len(br.Scores), 1)
		for tup := range br.Scores {
			is.Equal(tup.Min(2), uint8(0))
			is.Equal(tup.Margin(2), 1)
		}
	}
	is.True(!d.Sampled)
}

func TestToyPool(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	e, err := NewEngine(b, table, entries, WithSeed(1))
	is.NoErr(err)
	d, err := e.Compute(context.Background(), testhelpers.ToyGame)
	is.NoErr(err)
	first, second := placeProbs(d)
	assert.InDelta(t, testhelpers.ToyFirstA, first[0], 1e-9)
	assert.InDelta(t, testhelpers.ToyFirstB, first[1], 1e-9)
	assert.InDelta(t, testhelpers.ToyFirstB, second[0], 1e-9)
	assert.InDelta(t, testhelpers.ToyFirstA, second[1], 1e-9)
	assert.InDelta(t, 0.6*0.7*0.55+0.6*0.3*0.55/1.05, d.TeamProb(0), 1e-9)
}

func TestKnownResult(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	is.NoErr(b.SetWinner(0, 1))
	e, err := NewEngine(b, table, entries)
	is.NoErr(err)
	d, err := e.Compute(context.Background(), 0)
	is.NoErr(err)
	is.Equal(len(d.Live()), 1)
	is.Equal(d.TeamProb(1), 1.0)

	d, err = e.Compute(context.Background(), testhelpers.ToyGame)
	is.NoErr(err)
	first, _ := placeProbs(d)
	// A's champion is out and B already leads.
	assert.InDelta(t, 0.0, first[0], 1e-12)
	assert.InDelta(t, 1.0, first[1], 1e-12)
}

func TestDecidedGameWithUndecidedFeeders(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	is.NoErr(b.SetWinner(testhelpers.ToyGame, 0))
	e, err := NewEngine(b, table, entries)
	is.NoErr(err)
	_, err = e.Compute(context.Background(), testhelpers.ToyGame)
	is.True(errors.Is(err, bracket.ErrDataInconsistency))
	var ie *bracket.InconsistencyError
	is.True(errors.As(err, &ie))
	is.Equal(ie.Game, testhelpers.ToyGame)
}

func TestWinnerFromNeitherFeeder(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	is.NoErr(b.SetWinner(0, 0))
	is.NoErr(b.SetWinner(1, 2))
	// Eligible for game 32, but knocked out in game 0.
	is.NoErr(b.SetWinner(testhelpers.ToyGame, 1))
	e, err := NewEngine(b, table, entries)
	is.NoErr(err)
	_, err = e.Compute(context.Background(), testhelpers.ToyGame)
	is.True(errors.Is(err, bracket.ErrDataInconsistency))
}

func TestDegenerateForecast(t *testing.T) {
	is := is.New(t)
	f := testhelpers.Forecasts()
	f[0] = probtable.Cumulative{}
	f[1] = probtable.Cumulative{}
	_, _, entries := testhelpers.Toy()
	e, err := NewEngine(testhelpers.NewBracket(), probtable.New(f), entries)
	is.NoErr(err)
	_, err = e.Compute(context.Background(), testhelpers.ToyGame)
	is.True(errors.Is(err, bracket.ErrNumericDegeneracy))
	var de *bracket.DegeneracyError
	is.True(errors.As(err, &de))
	is.Equal(de.First, bracket.TeamID(0))
	is.Equal(de.Second, bracket.TeamID(1))
}

func TestZeroProbabilityTeamIsSkipped(t *testing.T) {
	is := is.New(t)
	f := testhelpers.Forecasts()
	f[1] = probtable.Cumulative{}
	_, _, entries := testhelpers.Toy()
	e, err := NewEngine(testhelpers.NewBracket(), probtable.New(f), entries)
	is.NoErr(err)
	d, err := e.Compute(context.Background(), 0)
	is.NoErr(err)
	is.Equal(len(d.Branches), 1)
	is.Equal(d.TeamProb(0), 1.0)
}

func TestEntryLimits(t *testing.T) {
	is := is.New(t)
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	_, err := NewEngine(b, table, nil)
	is.True(err != nil)
	_, err = NewEngine(b, table, randomPool(1, 9))
	is.True(err != nil)
	bad := randomPool(1, 1)
	bad[0].Picks[40] = 0
	_, err = NewEngine(b, table, bad)
	is.True(errors.Is(err, bracket.ErrDataInconsistency))
}

func TestExactMatchesReference(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(7, 4)

	e, err := NewEngine(b, table, entries, WithCrossProductLimit(1<<30))
	is.NoErr(err)
	d, err := e.Compute(context.Background(), game)
	is.NoErr(err)
	is.True(!d.Sampled)
	assert.InDelta(t, 1.0, d.Total(), 1e-9)

	first, second := placeProbs(d)
	refFirst, refSecond := testhelpers.Reference(b, table, entries, game)
	for i := range entries {
		assert.InDelta(t, refFirst[i], first[i], 1e-9, "first, entry %d", i)
		assert.InDelta(t, refSecond[i], second[i], 1e-9, "second, entry %d", i)
	}
}

func TestExactWithDecidedGames(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(3, 5)
	// Games 8 to 11 and 36 are done.
	for g := 8; g < 12; g++ {
		_, t2 := b.FirstRoundTeams(g)
		is.NoErr(b.SetWinner(g, t2))
	}
	is.NoErr(b.SetWinner(36, b.Games[9].Winner))
	is.NoErr(b.Validate())

	e, err := NewEngine(b, table, entries)
	is.NoErr(err)
	d, err := e.Compute(context.Background(), game)
	is.NoErr(err)
	first, second := placeProbs(d)
	refFirst, refSecond := testhelpers.Reference(b, table, entries, game)
	for i := range entries {
		assert.InDelta(t, refFirst[i], first[i], 1e-9)
		assert.InDelta(t, refSecond[i], second[i], 1e-9)
	}
}

func TestSamplingConverges(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(11, 4)

	e, err := NewEngine(b, table, entries, WithCrossProductLimit(4),
		WithSampleBudget(300_000), WithSeed(42))
	is.NoErr(err)
	d, err := e.Compute(context.Background(), game)
	is.NoErr(err)
	is.True(d.Sampled)
	assert.InDelta(t, 1.0, d.Total(), 1e-9)

	first, second := placeProbs(d)
	refFirst, refSecond := testhelpers.Reference(b, table, entries, game)
	for i := range entries {
		assert.InDelta(t, refFirst[i], first[i], 0.01, "first, entry %d", i)
		assert.InDelta(t, refSecond[i], second[i], 0.01, "second, entry %d", i)
	}
}

// sampledRounds returns the round of every sampling warning in a JSON log.
func sampledRounds(t *testing.T, buf *bytes.Buffer) []string {
	var rounds []string
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var line struct {
			Level       string `json:"level"`
			Message     string `json:"message"`
			Round       string `json:"round"`
			Approximate bool   `json:"approximate"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatal(err)
		}
		if line.Message == "sampling-over-limit" {
			assert.Equal(t, "warn", line.Level)
			assert.True(t, line.Approximate)
			rounds = append(rounds, line.Round)
		}
	}
	return rounds
}

func TestSamplingWarnsOncePerRound(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(11, 4)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	e, err := NewEngine(b, table, entries, WithCrossProductLimit(4),
		WithSampleBudget(10_000), WithSeed(42))
	is.NoErr(err)
	d, err := e.Compute(ctx, game)
	is.NoErr(err)
	is.True(d.Sampled)

	rounds := sampledRounds(t, &buf)
	is.True(len(rounds) > 0)
	seen := map[string]bool{}
	for _, r := range rounds {
		is.True(!seen[r]) // one warning per round
		seen[r] = true
	}

	// Each Compute call warns afresh.
	buf.Reset()
	_, err = e.Compute(ctx, game)
	is.NoErr(err)
	assert.ElementsMatch(t, rounds, sampledRounds(t, &buf))
}

func TestSeedIsDeterministic(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(5, 6)

	compute := func(opts ...Option) []float64 {
		opts = append(opts, WithCrossProductLimit(8), WithSampleBudget(20_000), WithSeed(99))
		e, err := NewEngine(b, table, entries, opts...)
		is.NoErr(err)
		d, err := e.Compute(context.Background(), game)
		is.NoErr(err)
		first, _ := placeProbs(d)
		return first
	}
	a := compute()
	again := compute()
	parallel := compute(WithParallelism(bracket.NumRounds))
	for i := range a {
		assert.InDelta(t, a[i], again[i], 1e-9)
		assert.InDelta(t, a[i], parallel[i], 1e-9)
	}
}

func TestOtherMerging(t *testing.T) {
	is := is.New(t)
	const game = 56
	b := testhelpers.NewBracket()
	table := probtable.New(testhelpers.Forecasts())
	entries := randomPool(13, 3)

	exact, err := NewEngine(b, table, entries, WithCrossProductLimit(1<<30))
	is.NoErr(err)
	merged, err := NewEngine(b, table, entries, WithCrossProductLimit(1<<30), WithOtherMerging(true))
	is.NoErr(err)

	de, err := exact.Compute(context.Background(), game)
	is.NoErr(err)
	dm, err := merged.Compute(context.Background(), game)
	is.NoErr(err)
	assert.InDelta(t, 1.0, dm.Total(), 1e-9)
	is.True(len(dm.Branches) <= len(de.Branches))

	// Picked teams keep their own branch.
	for _, tm := range bracket.Selections(entries)[bracket.Parent(game)].Teams() {
		if bracket.Eligible(game).Has(tm) {
			is.True(dm.Lookup(TeamKey(tm)) != nil)
		}
	}
	f1, _ := placeProbs(de)
	f2, _ := placeProbs(dm)
	for i := range f1 {
		assert.InDelta(t, f1[i], f2[i], 0.05)
	}
}

func TestCanceledContext(t *testing.T) {
	is := is.New(t)
	b, table, entries := testhelpers.Toy()
	e, err := NewEngine(b, table, entries)
	is.NoErr(err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Compute(ctx, bracket.NumGames-1)
	is.True(errors.Is(err, context.Canceled))
}
