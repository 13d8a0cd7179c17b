// Package scoretuple packs the running score of every pool entry into a
// single machine word so it can be used as a map key.
package scoretuple

import (
	"strconv"
	"strings"

	"github.com/domino14/bracketsim/bracket"
)

// ScoreTuple holds one byte per entry. Byte i is entry i's points divided
// by 10. A full bracket is worth 192 reduced points, so a byte never
// overflows.
//
// 63   55   47   39   31   23   15    7
//  7777 7777 6666 6666 .... 1111 0000 0000
type ScoreTuple uint64

// MaxEntries is the number of entries that fit. More than this needs a wider
// word.
const MaxEntries = 8

const byteMask = 0xff

// New packs the given per-entry reduced scores.
func New(vals ...uint8) ScoreTuple {
	if len(vals) > MaxEntries {
		panic("too many entries for a score tuple")
	}
	var t ScoreTuple
	for i, v := range vals {
		t |= ScoreTuple(v) << (8 * i)
	}
	return t
}

func (t ScoreTuple) Get(i int) uint8 {
	return uint8(t >> (8 * i) & byteMask)
}

// Add is byte-wise addition. Bytes never carry into each other as long as
// totals stay within a byte, so this is plain integer addition.
func (t ScoreTuple) Add(o ScoreTuple) ScoreTuple {
	return t + o
}

// Min is the smallest of the first n bytes.
func (t ScoreTuple) Min(n int) uint8 {
	smallest := t.Get(0)
	for i := 1; i < n; i++ {
		if b := t.Get(i); b < smallest {
			smallest = b
		}
	}
	return smallest
}

// Normalize subtracts the minimum byte from each of the first n bytes. The
// relative ranking of entries is unchanged.
func (t ScoreTuple) Normalize(n int) ScoreTuple {
	smallest := ScoreTuple(t.Min(n))
	if smallest == 0 {
		return t
	}
	var sub ScoreTuple
	for i := 0; i < n; i++ {
		sub |= smallest << (8 * i)
	}
	return t - sub
}

// Winner is the index of the largest byte; ties go to the lowest index.
func (t ScoreTuple) Winner(n int) int {
	biggest := t.Get(0)
	index := 0
	for i := 1; i < n; i++ {
		if b := t.Get(i); b > biggest {
			biggest = b
			index = i
		}
	}
	return index
}

// RunnerUp is the index of the largest byte other than Winner's, again
// preferring the lowest index on ties. With a single entry it returns -1.
func (t ScoreTuple) RunnerUp(n int) int {
	w := t.Winner(n)
	index := -1
	var biggest uint8
	for i := 0; i < n; i++ {
		if i == w {
			continue
		}
		if b := t.Get(i); index == -1 || b > biggest {
			biggest = b
			index = i
		}
	}
	return index
}

// Margin is how many reduced points the winner leads the runner-up by.
func (t ScoreTuple) Margin(n int) int {
	r := t.RunnerUp(n)
	if r < 0 {
		return 0
	}
	return int(t.Get(t.Winner(n))) - int(t.Get(r))
}

// Format renders the first n scores in real points, e.g. "(30, 0, 10)".
func (t ScoreTuple) Format(n int) string {
	var sb strings.Builder
	sb.WriteString("(")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(t.Get(i)) * 10))
	}
	sb.WriteString(")")
	return sb.String()
}

// ForWinner is the contribution of one game: every entry that picked winner
// gets reduced points.
func ForWinner(entries []bracket.Entry, game int, winner bracket.TeamID, reduced uint8) ScoreTuple {
	var t ScoreTuple
	if !winner.Valid() {
		return t
	}
	for i := range entries {
		if entries[i].Picks[game] == winner {
			t |= ScoreTuple(reduced) << (8 * i)
		}
	}
	return t
}
