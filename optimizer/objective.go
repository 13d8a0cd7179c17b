// Package optimizer searches for the picks that give one pool entry the best
// chance of finishing first, with the other entries held fixed.
package optimizer

import (
	"context"
	"fmt"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/probtable"
	"github.com/domino14/bracketsim/standings"
)

// minGain is the smallest change in win probability counted as an
// improvement. Exact results still wobble in the last bits with map order.
const minGain = 1e-12

// Objective scores hypothetical picks for one entry.
type Objective struct {
	Bracket *bracket.Bracket
	Table   *probtable.Table
	Entries []bracket.Entry
	// Game is the root of the computation, normally the championship.
	Game int
	// Seed is shared by every evaluation so that sampled results compare
	// like with like.
	Seed          uint64
	EngineOptions []outcomes.Option
}

func NewObjective(b *bracket.Bracket, t *probtable.Table, entries []bracket.Entry, opts ...outcomes.Option) *Objective {
	return &Objective{
		Bracket:       b,
		Table:         t,
		Entries:       entries,
		Game:          bracket.NumGames - 1,
		EngineOptions: opts,
	}
}

// ProbWin is the probability that entry target finishes first if it had
// picked picks instead.
func (o *Objective) ProbWin(ctx context.Context, picks [bracket.NumGames]bracket.TeamID, target int) (float64, error) {
	if target < 0 || target >= len(o.Entries) {
		return 0, fmt.Errorf("entry %d out of range", target)
	}
	entries := make([]bracket.Entry, len(o.Entries))
	copy(entries, o.Entries)
	entries[target].Picks = picks

	opts := append([]outcomes.Option{outcomes.WithSeed(o.Seed)}, o.EngineOptions...)
	e, err := outcomes.NewEngine(o.Bracket, o.Table, entries, opts...)
	if err != nil {
		return 0, err
	}
	d, err := e.Compute(ctx, o.Game)
	if err != nil {
		return 0, err
	}
	return standings.Aggregate(d, entries).First[target], nil
}

// start checks the target entry and returns where a search begins.
func (o *Objective) start(target int) (Choices, error) {
	if target < 0 || target >= len(o.Entries) {
		return 0, fmt.Errorf("entry %d out of range", target)
	}
	e := &o.Entries[target]
	if err := e.Check(); err != nil {
		return 0, err
	}
	if err := e.Consistent(); err != nil {
		return 0, err
	}
	return ChoicesFromPicks(o.Bracket, e.Picks)
}
