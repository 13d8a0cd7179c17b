package testhelpers

import (
	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
)

// ToyGame is the root of the three-game toy bracket: games 0 and 1 feed
// game 32.
const ToyGame = 32

// Toy returns a pool where only games 0, 1 and 32 matter. Team 0 beats
// team 1 with probability 0.6, team 2 beats team 3 with 0.7, and in game 32
// team 0 beats team 2 with 0.55. Entry A has 0 over 1, 2 over 3, 0 over 2;
// entry B has 1 over 0, 2 over 3, 2 over 1.
//
// P(A first) = 0.411 and P(B first) = 0.589, computed by hand.
func Toy() (*bracket.Bracket, *probtable.Table, []bracket.Entry) {
	f := Forecasts()
	f[0] = probtable.Cumulative{0.6, 0.33}
	f[1] = probtable.Cumulative{0.4, 0.2}
	f[2] = probtable.Cumulative{0.7, 0.315}
	f[3] = probtable.Cumulative{0.3, 0.15}

	a := Chalk("A", map[int]bracket.TeamID{0: 0, 1: 2, 32: 0})
	b := Chalk("B", map[int]bracket.TeamID{0: 1, 1: 2, 32: 2})
	return NewBracket(), probtable.New(f), []bracket.Entry{a, b}
}

const (
	ToyFirstA = 0.411
	ToyFirstB = 0.589
)
