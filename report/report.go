// Package report renders engine and optimizer results as text.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/samber/lo"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/optimizer"
	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/standings"
)

// histogramResolution is how many pseudo-samples a probability of 1 turns
// into for the margin histogram.
const histogramResolution = 1000

func Standings(w io.Writer, s *standings.Standings) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-4s%-24s%10s%10s\n", "#", "Entry", "First", "Second")
	for i, p := range s.Sorted() {
		fmt.Fprintf(&sb, "%-4d%-24s%9.3f%%%9.3f%%\n", i+1, p.Name, 100*p.First, 100*p.Second)
	}
	if elim := s.Eliminated(); len(elim) > 0 {
		fmt.Fprintf(&sb, "Eliminated: %s\n", strings.Join(
			lo.Map(elim, func(i int, _ int) string { return s.Names[i] }), ", "))
	}
	if s.Sampled {
		sb.WriteString("(sampled; results are approximate)\n")
	}
	io.WriteString(w, sb.String())
}

func Estimates(w io.Writer, est *standings.Estimates, confidence float64) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s%20s%20s\n", "Entry", "First", "Second")
	order := lo.Range(len(est.Names))
	sort.SliceStable(order, func(i, j int) bool {
		return est.First[order[i]].Mean() > est.First[order[j]].Mean()
	})
	for _, i := range order {
		fmt.Fprintf(&sb, "%-24s%20s%20s\n", est.Names[i],
			est.First[i].Percent(confidence), est.Second[i].Percent(confidence))
	}
	fmt.Fprintf(&sb, "%d runs, %.0f%% intervals\n", est.First[0].Count(), confidence)
	io.WriteString(w, sb.String())
}

// Distribution lists each possible winner of the game with its probability
// and up to top of its most likely score tuples.
func Distribution(w io.Writer, b *bracket.Bracket, d *outcomes.Distribution, top int) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Game %d (%s), %d branches, %d tuples\n", d.Game,
		bracket.RoundName(bracket.GameRound(d.Game).Round), len(d.Live()), d.NumTuples())
	branches := d.Live()
	sort.SliceStable(branches, func(i, j int) bool { return branches[i].Prob() > branches[j].Prob() })
	for _, br := range branches {
		name := "other"
		if t, ok := br.Key.Team(); ok {
			name = b.TeamName(t)
		}
		fmt.Fprintf(&sb, "  %-24s%8.3f%%\n", name, 100*br.Prob())
		type tp struct {
			label string
			p     float64
		}
		tuples := make([]tp, 0, len(br.Scores))
		for t, p := range br.Scores {
			tuples = append(tuples, tp{t.Format(d.N), p})
		}
		sort.Slice(tuples, func(i, j int) bool {
			if tuples[i].p == tuples[j].p {
				return tuples[i].label < tuples[j].label
			}
			return tuples[i].p > tuples[j].p
		})
		for _, t := range tuples[:min(top, len(tuples))] {
			fmt.Fprintf(&sb, "      %-36s%8.3f%%\n", t.label, 100*t.p)
		}
	}
	io.WriteString(w, sb.String())
}

// MarginHistogram draws the distribution of the winning margin.
func MarginHistogram(w io.Writer, margins []standings.Margin, bins, width int) error {
	var data []float64
	for _, m := range margins {
		n := int(math.Round(m.Prob * histogramResolution))
		for i := 0; i < n; i++ {
			data = append(data, float64(m.Points))
		}
	}
	if len(data) == 0 {
		_, err := io.WriteString(w, "no margins to plot\n")
		return err
	}
	return histogram.Fprint(w, histogram.Hist(bins, data), histogram.Linear(width))
}

func Optimization(w io.Writer, b *bracket.Bracket, entry string, res *optimizer.Result) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entry %s: %.3f%% -> %.3f%% after %d passes, %d evaluations\n",
		entry, 100*res.Start, 100*res.Prob, res.Passes, res.Evaluations)
	picks(&sb, b, res.Picks)
	io.WriteString(w, sb.String())
}

func Candidate(w io.Writer, b *bracket.Bracket, c *optimizer.Candidate) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Best at position %d: %.3f%%\n", c.Position, 100*c.Prob)
	picks(&sb, b, c.Picks)
	io.WriteString(w, sb.String())
}

// picks prints one line per round, latest round first.
func picks(sb *strings.Builder, b *bracket.Bracket, p [bracket.NumGames]bracket.TeamID) {
	for round := bracket.Championship; round <= bracket.RoundOf64; round++ {
		names := lo.Map(bracket.GamesInRound(round), func(g int, _ int) string {
			return b.TeamName(p[g])
		})
		fmt.Fprintf(sb, "  %-14s %s\n", bracket.RoundName(round)+":", strings.Join(names, ", "))
	}
}
