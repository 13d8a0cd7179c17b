// Package testhelpers builds small, fully known pools for tests across the
// repo, plus a brute-force reference to check the engine against.
package testhelpers

import (
	"fmt"

	"lukechampine.com/frand"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
)

func Names() []string {
	names := make([]string, bracket.NumTeams)
	for i := range names {
		names[i] = fmt.Sprintf("Team %02d", i)
	}
	return names
}

func NewBracket() *bracket.Bracket {
	b, err := bracket.New(Names())
	if err != nil {
		panic(err)
	}
	return b
}

// Forecasts gives team i a fixed conditional strength in every round, so
// that cumulative probabilities are strength^(r+1).
func Forecasts() map[bracket.TeamID]probtable.Cumulative {
	f := make(map[bracket.TeamID]probtable.Cumulative, bracket.NumTeams)
	for i := 0; i < bracket.NumTeams; i++ {
		s := 0.3 + 0.4*float64((i*37)%64)/63
		var c probtable.Cumulative
		p := 1.0
		for r := range c {
			p *= s
			c[r] = p
		}
		f[bracket.TeamID(i)] = c
	}
	return f
}

// Rng is a fixed-seed generator for building test entries.
func Rng(seed byte) *frand.RNG {
	s := make([]byte, 32)
	s[0] = seed
	return frand.NewCustom(s, 1024, 12)
}

// RandomEntry picks every game at random while staying consistent with the
// entry's own earlier picks.
func RandomEntry(rng *frand.RNG, name string) bracket.Entry {
	e := bracket.Entry{Name: name}
	for g := 0; g < bracket.NumGames; g++ {
		var a, b bracket.TeamID
		if first, second, ok := bracket.Inputs(g); ok {
			a, b = e.Picks[first], e.Picks[second]
		} else {
			a, b = bracket.TeamID(2*g), bracket.TeamID(2*g+1)
		}
		if rng.Intn(2) == 0 {
			e.Picks[g] = a
		} else {
			e.Picks[g] = b
		}
	}
	return e
}

// Chalk picks the lower-numbered team everywhere except where overrides
// says otherwise; overrides must keep the entry consistent.
func Chalk(name string, overrides map[int]bracket.TeamID) bracket.Entry {
	e := bracket.Entry{Name: name}
	for g := 0; g < bracket.NumGames; g++ {
		if t, ok := overrides[g]; ok {
			e.Picks[g] = t
			continue
		}
		if first, second, ok := bracket.Inputs(g); ok {
			e.Picks[g] = min(e.Picks[first], e.Picks[second])
		} else {
			e.Picks[g] = bracket.TeamID(2 * g)
		}
	}
	return e
}
