package optimizer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog"

	"github.com/domino14/bracketsim/bracket"
)

// ErrExhausted is returned by Next once every assignment has been visited.
var ErrExhausted = errors.New("enumeration exhausted")

// progressInterval is how often SearchBest reports its position to the sink.
const progressInterval = 256

type Candidate struct {
	Position uint64
	Choices  Choices
	Picks    [bracket.NumGames]bracket.TeamID
	Prob     float64
}

// Enumerator walks every assignment of the free games in Gray-code order,
// starting from the entry's own picks. Consecutive candidates differ in one
// game. It is not safe for concurrent use.
type Enumerator struct {
	objective *Objective
	target    int
	base      Choices
	free      []int
	pos       uint64
}

func NewEnumerator(obj *Objective, target int) (*Enumerator, error) {
	base, err := obj.start(target)
	if err != nil {
		return nil, err
	}
	free := FreeGames(obj.Bracket, obj.Game)
	if len(free) >= 64 {
		return nil, fmt.Errorf("too many free games: %d", len(free))
	}
	return &Enumerator{objective: obj, target: target, base: base, free: free}, nil
}

// Len is the number of candidates, 2^free games.
func (e *Enumerator) Len() uint64 {
	return 1 << uint(len(e.free))
}

// Position is the index of the next candidate.
func (e *Enumerator) Position() uint64 {
	return e.pos
}

// Seek restarts the walk at pos, e.g. from a checkpoint.
func (e *Enumerator) Seek(pos uint64) {
	e.pos = pos
}

// Space identifies the walk: the target, the free games, the starting
// choices and every known result. A checkpointed position is only
// meaningful to an enumerator with the same Space.
func (e *Enumerator) Space() uint64 {
	buf := make([]byte, 0, 8*(3+len(e.free))+bracket.NumGames)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.target))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.base))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(e.free)))
	for _, g := range e.free {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(g))
	}
	for i := range e.objective.Bracket.Games {
		buf = append(buf, byte(e.objective.Bracket.Games[i].Winner))
	}
	return xxhash.Sum64(buf)
}

func (e *Enumerator) Done() bool {
	return e.pos >= e.Len()
}

// choicesAt applies the Gray code of pos to the free bits of the base.
func (e *Enumerator) choicesAt(pos uint64) Choices {
	gray := pos ^ (pos >> 1)
	c := e.base
	for i, g := range e.free {
		if gray&(1<<uint(i)) != 0 {
			c = c.Flip(g)
		}
	}
	return c
}

func (e *Enumerator) Next(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if e.Done() {
		return Candidate{}, ErrExhausted
	}
	c := e.choicesAt(e.pos)
	picks := PicksFromChoices(e.objective.Bracket, c)
	p, err := e.objective.ProbWin(ctx, picks, e.target)
	if err != nil {
		return Candidate{}, err
	}
	cand := Candidate{Position: e.pos, Choices: c, Picks: picks, Prob: p}
	e.pos++
	return cand, nil
}

// All yields candidates until the walk is exhausted, ctx is done, or the
// caller stops. Errors are yielded once, last.
func (e *Enumerator) All(ctx context.Context) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for {
			c, err := e.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(Candidate{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// SearchBest consumes the enumerator, handing every new best candidate to
// sink. It returns the best seen so far along with ctx's error when
// interrupted.
func SearchBest(ctx context.Context, enum *Enumerator, sink Sink) (*Candidate, error) {
	logger := zerolog.Ctx(ctx)
	var best *Candidate
	logger.Info().Uint64("position", enum.Position()).Uint64("total", enum.Len()).
		Int("entry", enum.target).Msg("enumeration-started")
	for c, err := range enum.All(ctx) {
		if err != nil {
			// Save the position even when ctx is done.
			if perr := sink.Progress(context.WithoutCancel(ctx), enum.Position()); perr != nil {
				logger.Err(perr).Msg("saving-enumeration-position")
			}
			ev := logger.Info().Uint64("position", enum.Position())
			if best != nil {
				ev = ev.Float64("best", best.Prob)
			}
			ev.Msg("enumeration-stopped")
			return best, err
		}
		if best == nil || c.Prob > best.Prob+minGain {
			best = &c
			if err := sink.Best(ctx, c); err != nil {
				return best, err
			}
		}
		if enum.Position()%progressInterval == 0 {
			if err := sink.Progress(ctx, enum.Position()); err != nil {
				return best, err
			}
		}
	}
	if err := sink.Progress(ctx, enum.Position()); err != nil {
		return best, err
	}
	logger.Info().Uint64("position", enum.Position()).Msg("enumeration-ended")
	return best, nil
}
