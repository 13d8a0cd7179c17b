package probtable

import (
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"

	"github.com/domino14/bracketsim/bracket"
)

func TestConditionalFromCumulative(t *testing.T) {
	is := is.New(t)
	table := New(map[bracket.TeamID]Cumulative{
		0: {0.9, 0.6, 0.3, 0.15, 0.06, 0.03},
		1: {0.1, 0.02, 0, 0, 0, 0},
	})
	assert.InDelta(t, 0.9, table.Conditional(0, bracket.RoundOf64), 1e-12)
	assert.InDelta(t, 0.6/0.9, table.Conditional(0, bracket.RoundOf32), 1e-12)
	assert.InDelta(t, 0.5, table.Conditional(0, bracket.SweetSixteen), 1e-12)
	assert.InDelta(t, 0.5, table.Conditional(0, bracket.Championship), 1e-12)
	assert.InDelta(t, 0.2, table.Conditional(1, bracket.RoundOf32), 1e-12)

	// zero cumulative stays zero rather than 0/0.
	is.Equal(table.Conditional(1, bracket.SweetSixteen), 0.0)
	is.Equal(table.Conditional(1, bracket.Championship), 0.0)
	is.Equal(table.Conditional(5, bracket.RoundOf64), 0.0)

	is.Equal(table.Cumulative(0, bracket.FinalFour), 0.06)
	s := table.Strengths(0)
	is.Equal(s[bracket.RoundOf64], 0.9)
}

func TestHeadToHead(t *testing.T) {
	is := is.New(t)
	table := New(map[bracket.TeamID]Cumulative{
		0: {0.6},
		1: {0.4},
		2: {0.7, 0.35},
		3: {0.3, 0.15},
	})
	assert.InDelta(t, 0.6, table.HeadToHead(0, 1, bracket.RoundOf64), 1e-12)
	assert.InDelta(t, 0.4, table.HeadToHead(1, 0, bracket.RoundOf64), 1e-12)
	assert.InDelta(t, 0.5, table.HeadToHead(2, 3, bracket.RoundOf32), 1e-12)

	// two teams that can't win this round: the caller's problem.
	is.True(math.IsNaN(table.HeadToHead(0, 1, bracket.RoundOf32)))
	is.True(math.IsNaN(Duel(0, 0)))
}

func TestFromAdvancement(t *testing.T) {
	is := is.New(t)
	table := FromAdvancement(map[bracket.TeamID][bracket.NumRounds]float64{
		0: {0.01, 0.02, 0.05, 0.1, 0.3, 0.6},
	})
	is.Equal(table.Cumulative(0, bracket.RoundOf64), 0.6)
	is.Equal(table.Cumulative(0, bracket.Championship), 0.01)
	assert.InDelta(t, 0.5, table.Conditional(0, bracket.RoundOf32), 1e-12)
	assert.InDelta(t, 0.5, table.Conditional(0, bracket.Championship), 1e-12)
}

func TestImpossibleRound(t *testing.T) {
	is := is.New(t)
	bad := map[bracket.TeamID]Cumulative{
		0: {0.9, 0.6, 0.3, 0.15, 0.06, 0.03},
		3: {0.5, 0, 0.1, 0.05, 0, 0},
	}
	err := Check(bad)
	is.True(errors.Is(err, bracket.ErrDataInconsistency))
	assert.Contains(t, err.Error(), "team 3")
	is.NoErr(Check(map[bracket.TeamID]Cumulative{0: bad[0]}))

	table := New(bad)
	is.Equal(table.Cumulative(3, bracket.SweetSixteen), 0.0)
	is.Equal(table.Conditional(3, bracket.SweetSixteen), 0.0)
	is.Equal(table.Conditional(3, bracket.EliteEight), 0.0)
	is.True(!math.IsInf(table.Conditional(3, bracket.SweetSixteen), 0))
	// other teams are untouched.
	assert.InDelta(t, 0.5, table.Conditional(0, bracket.SweetSixteen), 1e-12)
}
