package testhelpers

import (
	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
)

// Reference enumerates every outcome of the undecided games under game and
// returns each entry's probability of finishing first and second. Ties go
// to the lowest entry index. Only practical for small subtrees.
func Reference(b *bracket.Bracket, t *probtable.Table, entries []bracket.Entry, game int) (first, second []float64) {
	games := bracket.Subtree(game)
	var free []int
	for _, g := range games {
		if !b.Games[g].Decided() {
			free = append(free, g)
		}
	}
	first = make([]float64, len(entries))
	second = make([]float64, len(entries))
	winners := make(map[int]bracket.TeamID, len(games))
	scores := make([]int, len(entries))

	for mask := uint64(0); mask < 1<<len(free); mask++ {
		bit := 0
		prob := 1.0
		clear(scores)
		for _, g := range games {
			var t1, t2 bracket.TeamID
			if f, s, ok := bracket.Inputs(g); ok {
				t1, t2 = winners[f], winners[s]
			} else {
				t1, t2 = b.FirstRoundTeams(g)
			}
			var w bracket.TeamID
			if b.Games[g].Decided() {
				w = b.Games[g].Winner
				if w != t1 && w != t2 {
					prob = 0
				}
			} else {
				p := t.HeadToHead(t1, t2, bracket.GameRound(g).Round)
				if mask&(1<<bit) == 0 {
					w = t1
					prob *= p
				} else {
					w = t2
					prob *= 1 - p
				}
				bit++
			}
			winners[g] = w
			for i := range entries {
				if entries[i].Picks[g] == w {
					scores[i] += bracket.Points(g)
				}
			}
		}
		if prob == 0 {
			continue
		}
		w := 0
		for i := range scores {
			if scores[i] > scores[w] {
				w = i
			}
		}
		first[w] += prob
		r := -1
		for i := range scores {
			if i != w && (r == -1 || scores[i] > scores[r]) {
				r = i
			}
		}
		if r >= 0 {
			second[r] += prob
		}
	}
	return first, second
}
