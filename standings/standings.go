// Package standings turns an outcome distribution into each entry's chance of
// finishing first or second in the pool.
package standings

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/stats"
)

type Standings struct {
	Game    int
	Names   []string
	First   []float64
	Second  []float64
	Sampled bool
}

// Place is one row of Sorted.
type Place struct {
	Index  int
	Name   string
	First  float64
	Second float64
}

func Aggregate(d *outcomes.Distribution, entries []bracket.Entry) *Standings {
	s := &Standings{
		Game:    d.Game,
		Names:   lo.Map(entries, func(e bracket.Entry, _ int) string { return e.Name }),
		First:   make([]float64, d.N),
		Second:  make([]float64, d.N),
		Sampled: d.Sampled,
	}
	for _, b := range d.Branches {
		for t, p := range b.Scores {
			s.First[t.Winner(d.N)] += p
			if r := t.RunnerUp(d.N); r >= 0 {
				s.Second[r] += p
			}
		}
	}
	return s
}

// Eliminated lists entries that cannot finish first.
func (s *Standings) Eliminated() []int {
	var out []int
	for i, p := range s.First {
		if p == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Sorted orders entries by first-place probability, then second-place, then
// index.
func (s *Standings) Sorted() []Place {
	places := make([]Place, len(s.First))
	for i := range places {
		places[i] = Place{Index: i, Name: s.Names[i], First: s.First[i], Second: s.Second[i]}
	}
	sort.SliceStable(places, func(i, j int) bool {
		if places[i].First != places[j].First {
			return places[i].First > places[j].First
		}
		return places[i].Second > places[j].Second
	})
	return places
}

func (s *Standings) Leader() int {
	return s.Sorted()[0].Index
}

// Margin is the probability that the pool is won by a given number of
// points.
type Margin struct {
	Points int
	Prob   float64
}

// Margins is sorted by points.
func Margins(d *outcomes.Distribution) []Margin {
	byMargin := map[int]float64{}
	for _, b := range d.Branches {
		for t, p := range b.Scores {
			byMargin[t.Margin(d.N)*10] += p
		}
	}
	out := make([]Margin, 0, len(byMargin))
	for pts, p := range byMargin {
		out = append(out, Margin{pts, p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points < out[j].Points })
	return out
}

// Estimates summarizes several Standings computed with different seeds.
type Estimates struct {
	Names  []string
	First  []stats.Estimate
	Second []stats.Estimate
}

// Replicate calls fn for runs 0..runs-1, up to threads at a time, and
// collects the per-entry results. fn is usually an engine with a seed
// derived from run.
func Replicate(ctx context.Context, runs, threads int,
	fn func(ctx context.Context, run int) (*Standings, error)) (*Estimates, error) {

	if runs < 1 {
		return nil, fmt.Errorf("need at least one run, got %d", runs)
	}
	results := make([]*Standings, runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(threads, 1))
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			s, err := fn(gctx, i)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	n := len(results[0].First)
	est := &Estimates{
		Names:  results[0].Names,
		First:  make([]stats.Estimate, n),
		Second: make([]stats.Estimate, n),
	}
	for _, s := range results {
		for i := 0; i < n; i++ {
			est.First[i].Push(s.First[i])
			est.Second[i].Push(s.Second[i])
		}
	}
	return est, nil
}
