// Package outcomes computes, for any game in the bracket, the joint
// distribution of who wins it and what every pool entry has scored by then.
//
// The computation recurses from the requested game down to the Round of 64.
// Each game combines the distributions of its two feeder games; near the root
// the cross product of score tuples gets too large to enumerate, and the
// engine samples it instead.
package outcomes

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
	"github.com/domino14/bracketsim/scoretuple"
)

const (
	// DefaultSampleBudget is how many Monte Carlo draws a branch pair with
	// probability mass 1 gets. Pairs get draws in proportion to their mass.
	DefaultSampleBudget = 2_000_000

	MinCrossProductLimit = 1 << 20
	MaxCrossProductLimit = 1 << 27

	// rough cost of one map entry, key plus value plus overhead.
	bytesPerTuple = 48

	ctxCheckInterval = 1 << 16
)

// Engine is immutable after NewEngine and can serve concurrent Compute calls.
type Engine struct {
	bracket    *bracket.Bracket
	table      *probtable.Table
	entries    []bracket.Entry
	selections [bracket.NumGames]bracket.TeamSet
	n          int

	crossProductLimit int
	sampleBudget      float64
	seed              uint64
	parallelDepth     int
	mergeOthers       bool
}

type Option func(*Engine)

// WithCrossProductLimit sets the number of tuple pairs above which a branch
// pair is sampled instead of enumerated.
func WithCrossProductLimit(n int) Option {
	return func(e *Engine) {
		e.crossProductLimit = n
	}
}

func WithSampleBudget(n int) Option {
	return func(e *Engine) {
		e.sampleBudget = float64(n)
	}
}

func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithParallelism computes the two feeders of every game in the top depth
// rounds concurrently. 0 means fully sequential.
func WithParallelism(depth int) Option {
	return func(e *Engine) {
		e.parallelDepth = depth
	}
}

// WithOtherMerging folds teams that no entry picked to advance into a single
// Other branch. This bounds memory but approximates their later head-to-head
// probabilities.
func WithOtherMerging(merge bool) Option {
	return func(e *Engine) {
		e.mergeOthers = merge
	}
}

// DefaultCrossProductLimit scales with the machine's memory.
func DefaultCrossProductLimit() int {
	total := memory.TotalMemory()
	if total == 0 {
		return 1 << 24
	}
	limit := total / 8 / bytesPerTuple
	return int(min(max(limit, MinCrossProductLimit), MaxCrossProductLimit))
}

func NewEngine(b *bracket.Bracket, t *probtable.Table, entries []bracket.Entry, opts ...Option) (*Engine, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("need at least one entry")
	}
	if len(entries) > scoretuple.MaxEntries {
		return nil, fmt.Errorf("at most %d entries fit in a score tuple, got %d",
			scoretuple.MaxEntries, len(entries))
	}
	for i := range entries {
		if err := entries[i].Check(); err != nil {
			return nil, err
		}
	}
	e := &Engine{
		bracket:           b,
		table:             t,
		entries:           entries,
		selections:        bracket.Selections(entries),
		n:                 len(entries),
		crossProductLimit: DefaultCrossProductLimit(),
		sampleBudget:      DefaultSampleBudget,
		seed:              frand.Uint64n(math.MaxUint64),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) NumEntries() int {
	return e.n
}

func (e *Engine) Seed() uint64 {
	return e.seed
}

// run holds the mutable state of one Compute call.
type run struct {
	*Engine
	warned     [bracket.NumRounds]atomic.Bool
	exactPairs atomic.Int64
	samples    atomic.Int64
}

// Compute returns the outcome distribution of game. Errors wrap
// bracket.ErrDataInconsistency or bracket.ErrNumericDegeneracy, or are the
// context's error.
func (e *Engine) Compute(ctx context.Context, game int) (*Distribution, error) {
	if game < 0 || game >= bracket.NumGames {
		return nil, fmt.Errorf("game %d out of range", game)
	}
	logger := zerolog.Ctx(ctx)
	r := &run{Engine: e}
	tstart := time.Now()
	d, err := r.compute(ctx, game)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("game", game).
		Int("tuples", d.NumTuples()).
		Int64("exact-pairs", r.exactPairs.Load()).
		Int64("samples", r.samples.Load()).
		Bool("sampled", d.Sampled).
		Dur("elapsed", time.Since(tstart)).
		Msg("computed-outcomes")
	return d, nil
}

func (r *run) compute(ctx context.Context, game int) (*Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ri := bracket.GameRound(game)
	if ri.Round == bracket.RoundOf64 {
		return r.base(game)
	}
	first, second, _ := bracket.Inputs(game)

	var d1, d2 *Distribution
	if ri.Round < r.parallelDepth {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			d1, err = r.compute(gctx, first)
			return err
		})
		g.Go(func() error {
			var err error
			d2, err = r.compute(gctx, second)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if d1, err = r.compute(ctx, first); err != nil {
			return nil, err
		}
		if d2, err = r.compute(ctx, second); err != nil {
			return nil, err
		}
	}
	return r.combine(ctx, game, d1, d2)
}

// keyFor decides whether team is tracked on its own after winning game.
func (r *run) keyFor(game int, team bracket.TeamID) Key {
	if !r.mergeOthers {
		return TeamKey(team)
	}
	parent := bracket.Parent(game)
	if parent < 0 || r.selections[parent].Has(team) || r.bracket.Games[parent].Winner == team {
		return TeamKey(team)
	}
	return Other
}

// base handles a Round of 64 game.
func (r *run) base(game int) (*Distribution, error) {
	g := &r.bracket.Games[game]
	t1, t2 := r.bracket.FirstRoundTeams(game)
	type teamProb struct {
		team bracket.TeamID
		prob float64
	}
	var tps []teamProb
	if g.Decided() {
		if g.Winner != t1 && g.Winner != t2 {
			return nil, bracket.Inconsistent(game, "winner %d did not play in this game", g.Winner)
		}
		tps = []teamProb{{g.Winner, 1}}
	} else {
		p := r.table.HeadToHead(t1, t2, bracket.RoundOf64)
		if math.IsNaN(p) {
			return nil, &bracket.DegeneracyError{First: t1, Second: t2, Round: bracket.RoundOf64}
		}
		tps = []teamProb{{t1, p}, {t2, 1 - p}}
	}

	d := newDistribution(game, r.n)
	pts := bracket.ReducedPoints(game)
	for _, tp := range tps {
		if tp.prob == 0 {
			continue
		}
		k := r.keyFor(game, tp.team)
		b := d.branch(k)
		st := scoretuple.ForWinner(r.entries, game, tp.team, pts)
		b.add(st.Normalize(r.n), tp.prob)
		if k == Other {
			b.addStrength(r.table.Strengths(tp.team), tp.prob)
		}
	}
	return d, nil
}

type winner struct {
	key      Key
	team     bracket.TeamID
	prob     float64
	strength [bracket.NumRounds]float64
	contrib  scoretuple.ScoreTuple
}

func (r *run) strength(b *Branch, round int) float64 {
	if t, ok := b.Key.Team(); ok {
		return r.table.Conditional(t, round)
	}
	return b.Strength(round)
}

func (r *run) strengths(b *Branch) [bracket.NumRounds]float64 {
	if t, ok := b.Key.Team(); ok {
		return r.table.Strengths(t)
	}
	return b.strengths()
}

// winners lists who can come out of game when b1 meets b2.
func (r *run) winners(game, round int, b1, b2 *Branch) ([]winner, error) {
	g := &r.bracket.Games[game]
	pts := bracket.ReducedPoints(game)
	mk := func(b *Branch, p float64) winner {
		t, _ := b.Key.Team()
		w := winner{team: t, prob: p}
		if b.Key == Other {
			w.key = Other
		} else {
			w.key = r.keyFor(game, t)
			w.contrib = scoretuple.ForWinner(r.entries, game, t, pts)
		}
		if w.key == Other {
			w.strength = r.strengths(b)
		}
		return w
	}

	if g.Decided() {
		switch {
		case b1.Key == TeamKey(g.Winner):
			return []winner{mk(b1, 1)}, nil
		case b2.Key == TeamKey(g.Winner):
			return []winner{mk(b2, 1)}, nil
		}
		return nil, bracket.Inconsistent(game, "winner %d came out of neither feeder game (%v, %v)",
			g.Winner, b1.Key, b2.Key)
	}

	s1, s2 := r.strength(b1, round), r.strength(b2, round)
	p := probtable.Duel(s1, s2)
	if math.IsNaN(p) {
		t1, _ := b1.Key.Team()
		t2, _ := b2.Key.Team()
		return nil, &bracket.DegeneracyError{First: t1, Second: t2, FirstProb: s1, SecondProb: s2, Round: round}
	}
	if b1.Key == Other && b2.Key == Other {
		// Nobody scores either way, so one merged winner is enough.
		w := winner{key: Other, prob: 1, team: bracket.NoTeam}
		a, b := r.strengths(b1), r.strengths(b2)
		for i := range w.strength {
			w.strength[i] = p*a[i] + (1-p)*b[i]
		}
		return []winner{w}, nil
	}
	ws := make([]winner, 0, 2)
	if p > 0 {
		ws = append(ws, mk(b1, p))
	}
	if p < 1 {
		ws = append(ws, mk(b2, 1-p))
	}
	return ws, nil
}

func (r *run) combine(ctx context.Context, game int, d1, d2 *Distribution) (*Distribution, error) {
	logger := zerolog.Ctx(ctx)
	g := &r.bracket.Games[game]
	ri := bracket.GameRound(game)
	live1, live2 := d1.Live(), d2.Live()

	if g.Decided() && (len(live1) != 1 || len(live2) != 1) {
		// A game played in real life implies its feeders were played too.
		return nil, bracket.Inconsistent(game, "decided, but feeder games %d and %d have %d and %d live branches",
			d1.Game, d2.Game, len(live1), len(live2))
	}
	if ri.Round <= bracket.FinalFour {
		logger.Debug().Int("game", game).Str("round", bracket.RoundName(ri.Round)).
			Int("branches1", len(live1)).Int("tuples1", d1.NumTuples()).
			Int("branches2", len(live2)).Int("tuples2", d2.NumTuples()).
			Msg("combining")
	}

	out := newDistribution(game, r.n)
	out.Sampled = d1.Sampled || d2.Sampled
	var rng *frand.RNG
	mass2 := make([]float64, len(live2))
	for j, b2 := range live2 {
		mass2[j] = b2.Prob()
	}

	for _, b1 := range live1 {
		m1 := b1.Prob()
		for j, b2 := range live2 {
			ws, err := r.winners(game, ri.Round, b1, b2)
			if err != nil {
				return nil, err
			}
			m2 := mass2[j]
			dests := make([]*Branch, len(ws))
			for i, w := range ws {
				dests[i] = out.branch(w.key)
				if w.key == Other {
					dests[i].addStrength(w.strength, w.prob*m1*m2)
				}
			}

			pairs := len(b1.Scores) * len(b2.Scores)
			if pairs <= r.crossProductLimit {
				r.exactPairs.Add(int64(pairs))
				for s1, p1 := range b1.Scores {
					for s2, p2 := range b2.Scores {
						sum := s1.Add(s2)
						for i, w := range ws {
							dests[i].add(sum.Add(w.contrib).Normalize(r.n), w.prob*p1*p2)
						}
					}
				}
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				continue
			}

			if !r.warned[ri.Round].Swap(true) {
				logger.Warn().Str("round", bracket.RoundName(ri.Round)).Int("game", game).
					Int("pairs", pairs).Int("limit", r.crossProductLimit).
					Bool("approximate", true).Msg("sampling-over-limit")
			}
			if rng == nil {
				rng = r.rngFor(game)
			}
			out.Sampled = true
			samples := int(math.Round(m1 * m2 * r.sampleBudget))
			if samples < 1 {
				samples = 1
			}
			r.samples.Add(int64(samples))
			mass := m1 * m2 / float64(samples)
			row1, row2 := b1.Row(), b2.Row()
			for i := 0; i < samples; i++ {
				if i%ctxCheckInterval == ctxCheckInterval-1 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				sum := row1.Sample(rng.Float64()).Add(row2.Sample(rng.Float64()))
				for k, w := range ws {
					dests[k].add(sum.Add(w.contrib).Normalize(r.n), w.prob*mass)
				}
			}
		}
	}
	return out, nil
}

// rngFor seeds a generator from the engine seed and the game, so sampled
// results don't depend on evaluation order.
func (r *run) rngFor(game int) *frand.RNG {
	seed := make([]byte, 32)
	binary.LittleEndian.PutUint64(seed[0:], r.seed)
	binary.LittleEndian.PutUint64(seed[8:], uint64(game))
	return frand.NewCustom(seed, 1024, 12)
}
