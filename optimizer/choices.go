package optimizer

import (
	"github.com/domino14/bracketsim/bracket"
)

// Choices packs a complete, self-consistent set of picks into one word. Bit g
// set means the second side of game g wins: the second first-round team for
// Round of 64 games, the winner of the second feeder game otherwise.
//
//	bit:   62 ...  32 31 ... 0
//	game:  final   ... round of 64
type Choices uint64

func (c Choices) Bit(game int) bool {
	return c&(1<<uint(game)) != 0
}

func (c Choices) Flip(game int) Choices {
	return c ^ (1 << uint(game))
}

// PicksFromChoices resolves c bottom-up into a pick for every game.
func PicksFromChoices(b *bracket.Bracket, c Choices) [bracket.NumGames]bracket.TeamID {
	var picks [bracket.NumGames]bracket.TeamID
	for g := 0; g < bracket.NumGames; g++ {
		var t1, t2 bracket.TeamID
		if first, second, ok := bracket.Inputs(g); ok {
			t1, t2 = picks[first], picks[second]
		} else {
			t1, t2 = b.FirstRoundTeams(g)
		}
		if c.Bit(g) {
			picks[g] = t2
		} else {
			picks[g] = t1
		}
	}
	return picks
}

// ChoicesFromPicks is the inverse of PicksFromChoices. It fails for picks
// that advance a team the entry did not pick in an earlier game.
func ChoicesFromPicks(b *bracket.Bracket, picks [bracket.NumGames]bracket.TeamID) (Choices, error) {
	var c Choices
	for g := 0; g < bracket.NumGames; g++ {
		var t1, t2 bracket.TeamID
		if first, second, ok := bracket.Inputs(g); ok {
			t1, t2 = picks[first], picks[second]
		} else {
			t1, t2 = b.FirstRoundTeams(g)
		}
		switch picks[g] {
		case t1:
		case t2:
			c = c.Flip(g)
		default:
			return 0, bracket.Inconsistent(g, "pick %d is neither %d nor %d", picks[g], t1, t2)
		}
	}
	return c, nil
}

// FreeGames are the games under root that have not been played. Picks for
// played games are history and never change.
func FreeGames(b *bracket.Bracket, root int) []int {
	var free []int
	for _, g := range bracket.Subtree(root) {
		if !b.Games[g].Decided() {
			free = append(free, g)
		}
	}
	return free
}
