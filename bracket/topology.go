// Package bracket holds the fixed 64-team single-elimination topology and the
// data model that the odds engine works over: teams, games, and pool entries.
package bracket

import (
	"fmt"
	"math/bits"
)

const (
	NumTeams  = 64
	NumGames  = NumTeams - 1
	NumRounds = 6
)

// Round numbers decrease toward the final.
const (
	Championship = 0
	FinalFour    = 1
	EliteEight   = 2
	SweetSixteen = 3
	RoundOf32    = 4
	RoundOf64    = 5
)

var roundNames = [NumRounds]string{
	"Championship", "Final Four", "Elite Eight", "Sweet Sixteen", "Round of 32", "Round of 64",
}

func RoundName(round int) string {
	if round < 0 || round >= NumRounds {
		return fmt.Sprintf("round %d", round)
	}
	return roundNames[round]
}

// Round describes where a match sits in the bracket.
type Round struct {
	Round      int
	NumTeams   int
	NumMatches int
	// Index is one-based within the round, i.e. 1..32 for the Round of 64.
	Index int
}

// RoundIndex takes a one-based match number (1..63).
func RoundIndex(match int) Round {
	if match < 1 || match > NumGames {
		panic(fmt.Sprintf("match %d out of range", match))
	}
	// For x > 0, bits.Len8(x) == 1 + floor(log2(x)).
	round := bits.Len8(uint8(NumTeams-match)) - 1
	numMatches := 1 << round
	numTeams := numMatches * 2
	return Round{
		Round:      round,
		NumTeams:   numTeams,
		NumMatches: numMatches,
		Index:      numTeams - (NumTeams - match),
	}
}

// GameRound is RoundIndex for a zero-based game index.
func GameRound(game int) Round {
	return RoundIndex(game + 1)
}

// Match is the inverse of RoundIndex. Both index and the result are one-based.
func Match(round, index int) int {
	if index < 1 || index > 1<<round {
		panic(fmt.Sprintf("index %d out of range for round %d", index, round))
	}
	return index + NumTeams - (1 << (round + 1))
}

// GameIndex is Match with a zero-based slot and a zero-based result.
func GameIndex(round, slot int) int {
	return Match(round, slot+1) - 1
}

// Inputs returns the two games that feed game. Round of 64 games are fed by
// concrete teams, and ok is false for them.
func Inputs(game int) (first, second int, ok bool) {
	ri := GameRound(game)
	if ri.Round == RoundOf64 {
		return -1, -1, false
	}
	first = Match(ri.Round+1, ri.Index*2-1) - 1
	return first, first + 1, true
}

// Parent returns the game that the winner of game advances to, or -1 for the
// championship.
func Parent(game int) int {
	ri := GameRound(game)
	if ri.Round == Championship {
		return -1
	}
	return Match(ri.Round-1, (ri.Index+1)/2) - 1
}

// Points is the value of correctly picking the winner of game.
func Points(game int) int {
	return 10 << (RoundOf64 - GameRound(game).Round)
}

// ReducedPoints is Points scaled down by 10 so that totals fit in a byte.
func ReducedPoints(game int) uint8 {
	return uint8(Points(game) / 10)
}

// GamesInRound lists the zero-based games of a round in slot order.
func GamesInRound(round int) []int {
	games := make([]int, 0, 1<<round)
	for slot := 0; slot < 1<<round; slot++ {
		games = append(games, GameIndex(round, slot))
	}
	return games
}

// Subtree lists game and every game that feeds into it, in ascending order,
// so each game comes after its inputs.
func Subtree(game int) []int {
	ri := GameRound(game)
	var games []int
	for round := RoundOf64; round >= ri.Round; round-- {
		width := 1 << (round - ri.Round)
		first := (ri.Index - 1) * width
		for slot := first; slot < first+width; slot++ {
			games = append(games, GameIndex(round, slot))
		}
	}
	return games
}
