package optimizer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/domino14/bracketsim/bracket"
)

type Strategy string

const (
	StrategySingle Strategy = "single"
	StrategyDouble Strategy = "double"
	StrategyEnum   Strategy = "enum"
)

type Result struct {
	Entry       int
	Picks       [bracket.NumGames]bracket.TeamID
	Choices     Choices
	Prob        float64
	Start       float64
	Evaluations int
	Passes      int
}

func (r *Result) Improved() bool {
	return r.Prob > r.Start+minGain
}

// Optimizer runs hill-climbing searches. Each pass evaluates every move from
// the current picks and takes the best one; ties go to the first move.
type Optimizer struct {
	Objective *Objective
	Threads   int
}

func (o *Optimizer) SingleFlip(ctx context.Context, target int) (*Result, error) {
	return o.climb(ctx, target, StrategySingle, func(free []int) [][]int {
		moves := make([][]int, len(free))
		for i, g := range free {
			moves[i] = []int{g}
		}
		return moves
	})
}

// DoubleFlip tries every unordered pair of free games.
func (o *Optimizer) DoubleFlip(ctx context.Context, target int) (*Result, error) {
	return o.climb(ctx, target, StrategyDouble, func(free []int) [][]int {
		if len(free) < 2 {
			return nil
		}
		combos := combin.Combinations(len(free), 2)
		moves := make([][]int, len(combos))
		for i, c := range combos {
			moves[i] = []int{free[c[0]], free[c[1]]}
		}
		return moves
	})
}

func (o *Optimizer) climb(ctx context.Context, target int, strategy Strategy,
	movesFor func(free []int) [][]int) (*Result, error) {

	logger := zerolog.Ctx(ctx)
	obj := o.Objective
	current, err := obj.start(target)
	if err != nil {
		return nil, err
	}
	moves := movesFor(FreeGames(obj.Bracket, obj.Game))
	threads := max(o.Threads, 1)

	tstart := time.Now()
	prob, err := obj.ProbWin(ctx, PicksFromChoices(obj.Bracket, current), target)
	if err != nil {
		return nil, err
	}
	res := &Result{Entry: target, Start: prob, Evaluations: 1}
	logger.Info().Str("strategy", string(strategy)).Int("entry", target).
		Int("moves", len(moves)).Float64("start", prob).Msg("optimize-started")

	probs := make([]float64, len(moves))
	for {
		res.Passes++
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(threads)
		for i, m := range moves {
			g.Go(func() error {
				c := current
				for _, game := range m {
					c = c.Flip(game)
				}
				p, err := obj.ProbWin(gctx, PicksFromChoices(obj.Bracket, c), target)
				probs[i] = p
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		res.Evaluations += len(moves)

		best := -1
		for i, p := range probs {
			if p > prob+minGain && (best == -1 || p > probs[best]) {
				best = i
			}
		}
		if best == -1 {
			break
		}
		for _, game := range moves[best] {
			current = current.Flip(game)
		}
		prob = probs[best]
		logger.Debug().Int("pass", res.Passes).Ints("flipped", moves[best]).
			Float64("prob", prob).Msg("optimize-improved")
	}

	res.Choices = current
	res.Picks = PicksFromChoices(obj.Bracket, current)
	res.Prob = prob
	logger.Info().Str("strategy", string(strategy)).Int("entry", target).
		Float64("start", res.Start).Float64("prob", res.Prob).
		Int("passes", res.Passes).Int("evaluations", res.Evaluations).
		Dur("elapsed", time.Since(tstart)).Msg("optimize-ended")
	return res, nil
}
