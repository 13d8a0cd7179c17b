// Package probtable turns cumulative per-round advancement forecasts into the
// conditional win probabilities the outcome engine needs.
package probtable

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/domino14/bracketsim/bracket"
)

// Cumulative is a forecast row for one team: the probability of winning each
// round from the start of the tournament, Round of 64 first and
// championship last.
type Cumulative [bracket.NumRounds]float64

// Table is read-only after New and safe for concurrent use.
type Table struct {
	cumulative  [bracket.NumTeams]Cumulative
	conditional [bracket.NumTeams][bracket.NumRounds]float64
}

// impossibleRound is the first round a team is given a chance to win after a
// round it cannot win, or -1.
func impossibleRound(cum Cumulative) int {
	for i := 1; i < len(cum); i++ {
		if cum[i] > 0 && cum[i-1] == 0 {
			return i
		}
	}
	return -1
}

// Check reports the first team whose row gives it a chance to win a round
// after one it cannot win. Errors wrap bracket.ErrDataInconsistency.
func Check(forecasts map[bracket.TeamID]Cumulative) error {
	for team := bracket.TeamID(0); int(team) < bracket.NumTeams; team++ {
		cum, ok := forecasts[team]
		if !ok {
			continue
		}
		if i := impossibleRound(cum); i >= 0 {
			return fmt.Errorf("%w: team %d has probability %g in forecast column %d after 0 in column %d",
				bracket.ErrDataInconsistency, team, cum[i], i, i-1)
		}
	}
	return nil
}

// New builds the table. Teams missing from the map have zero probability
// everywhere. A round that follows one the team cannot win is zeroed; use
// Check to reject such rows instead.
func New(forecasts map[bracket.TeamID]Cumulative) *Table {
	t := &Table{}
	for team, cum := range forecasts {
		if !team.Valid() {
			continue
		}
		if i := impossibleRound(cum); i >= 0 {
			log.Warn().Int("team", int(team)).Int("column", i).
				Msg("forecast-after-impossible-round-zeroed")
			for j := i; j < len(cum); j++ {
				cum[j] = 0
			}
		}
		t.cumulative[team] = cum
		var prev float64
		for i, p := range cum {
			if i == 0 || p == 0 {
				t.conditional[team][i] = p
			} else {
				t.conditional[team][i] = p / prev
			}
			prev = p
		}
	}
	return t
}

// FromAdvancement builds the table from rows ordered the other way round,
// championship first and Round of 64 last.
func FromAdvancement(advancement map[bracket.TeamID][bracket.NumRounds]float64) *Table {
	forecasts := make(map[bracket.TeamID]Cumulative, len(advancement))
	for team, row := range advancement {
		var c Cumulative
		for i, p := range row {
			c[len(c)-1-i] = p
		}
		forecasts[team] = c
	}
	return New(forecasts)
}

// column maps a topology round (0 = championship) to a forecast column.
func column(round int) int {
	return bracket.RoundOf64 - round
}

// Conditional is the probability that team wins round given that it reached
// it.
func (t *Table) Conditional(team bracket.TeamID, round int) float64 {
	return t.conditional[team][column(round)]
}

// Cumulative is the forecast probability of winning round from the start.
func (t *Table) Cumulative(team bracket.TeamID, round int) float64 {
	return t.cumulative[team][column(round)]
}

// Strengths returns the team's conditional probabilities indexed by topology
// round.
func (t *Table) Strengths(team bracket.TeamID) [bracket.NumRounds]float64 {
	var s [bracket.NumRounds]float64
	for r := range s {
		s[r] = t.Conditional(team, r)
	}
	return s
}

// HeadToHead is P(a wins | a plays b in round). It is NaN when both teams
// have zero conditional probability; callers must handle decided games
// before asking.
func (t *Table) HeadToHead(a, b bracket.TeamID, round int) float64 {
	return Duel(t.Conditional(a, round), t.Conditional(b, round))
}

// Duel is the head-to-head rule applied to two conditional probabilities.
func Duel(pa, pb float64) float64 {
	return pa / (pa + pb)
}
