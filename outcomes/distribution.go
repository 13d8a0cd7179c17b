package outcomes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/scoretuple"
)

// Key says which team a branch belongs to. Other lumps together teams that no
// entry picked to go any further, when merging is on.
type Key int8

const Other Key = -1

func TeamKey(t bracket.TeamID) Key {
	return Key(t)
}

func (k Key) Team() (bracket.TeamID, bool) {
	if k == Other {
		return bracket.NoTeam, false
	}
	return bracket.TeamID(k), true
}

func (k Key) String() string {
	if k == Other {
		return "other"
	}
	return fmt.Sprintf("team %d", k)
}

// Branch is one "who won this game" alternative, with the probability mass of
// every normalized score tuple that goes with it.
type Branch struct {
	Key    Key
	Scores map[scoretuple.ScoreTuple]float64

	// Head-to-head strength of an Other branch is the mass-weighted mean of
	// its members' conditional probabilities.
	strengthSum  [bracket.NumRounds]float64
	strengthMass float64

	rowOnce sync.Once
	row     *Row
}

func newBranch(k Key) *Branch {
	return &Branch{Key: k, Scores: make(map[scoretuple.ScoreTuple]float64)}
}

func (b *Branch) add(t scoretuple.ScoreTuple, p float64) {
	b.Scores[t] += p
}

func (b *Branch) addStrength(s [bracket.NumRounds]float64, mass float64) {
	for r := range s {
		b.strengthSum[r] += s[r] * mass
	}
	b.strengthMass += mass
}

// Strength is only meaningful for Other branches.
func (b *Branch) Strength(round int) float64 {
	if b.strengthMass == 0 {
		return 0
	}
	return b.strengthSum[round] / b.strengthMass
}

func (b *Branch) strengths() [bracket.NumRounds]float64 {
	var s [bracket.NumRounds]float64
	for r := range s {
		s[r] = b.Strength(r)
	}
	return s
}

// Prob is the total mass of the branch.
func (b *Branch) Prob() float64 {
	var total float64
	for _, p := range b.Scores {
		total += p
	}
	return total
}

// Row returns the cached sampling view of the branch. The branch must not be
// modified after the first call.
func (b *Branch) Row() *Row {
	b.rowOnce.Do(func() {
		b.row = newRow(b.Scores)
	})
	return b.row
}

// Row is a flattened (tuple, cumulative probability) view of a branch used
// for inverse-CDF sampling.
type Row struct {
	tuples []scoretuple.ScoreTuple
	cum    []float64
}

func newRow(scores map[scoretuple.ScoreTuple]float64) *Row {
	type entry struct {
		t scoretuple.ScoreTuple
		p float64
	}
	entries := make([]entry, 0, len(scores))
	for t, p := range scores {
		entries = append(entries, entry{t, p})
	}
	// Map order is random and float sums depend on it, so order by tuple to
	// keep a fixed seed drawing the same tuples.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].t < entries[j].t
	})
	r := &Row{
		tuples: make([]scoretuple.ScoreTuple, len(entries)),
		cum:    make([]float64, len(entries)),
	}
	var total float64
	for i, e := range entries {
		total += e.p
		r.tuples[i] = e.t
		r.cum[i] = total
	}
	return r
}

func (r *Row) Len() int {
	return len(r.tuples)
}

func (r *Row) Total() float64 {
	if len(r.cum) == 0 {
		return 0
	}
	return r.cum[len(r.cum)-1]
}

// Sample maps u in [0, 1) to a tuple with probability proportional to its
// mass.
func (r *Row) Sample(u float64) scoretuple.ScoreTuple {
	target := u * r.Total()
	i := sort.Search(len(r.cum), func(i int) bool { return r.cum[i] > target })
	if i == len(r.cum) {
		i--
	}
	return r.tuples[i]
}

// Distribution is the joint distribution of (winner of Game, normalized
// score tuple over N entries).
type Distribution struct {
	Game     int
	N        int
	Branches []*Branch
	// Sampled is set when Monte Carlo was used anywhere in this subtree.
	Sampled bool
}

func newDistribution(game, n int) *Distribution {
	return &Distribution{Game: game, N: n}
}

// branch returns the branch for k, creating it if needed.
func (d *Distribution) branch(k Key) *Branch {
	if b := d.Lookup(k); b != nil {
		return b
	}
	b := newBranch(k)
	d.Branches = append(d.Branches, b)
	return b
}

func (d *Distribution) Lookup(k Key) *Branch {
	for _, b := range d.Branches {
		if b.Key == k {
			return b
		}
	}
	return nil
}

// Live are the branches that have at least one score tuple.
func (d *Distribution) Live() []*Branch {
	live := make([]*Branch, 0, len(d.Branches))
	for _, b := range d.Branches {
		if len(b.Scores) > 0 {
			live = append(live, b)
		}
	}
	return live
}

func (d *Distribution) Total() float64 {
	var total float64
	for _, b := range d.Branches {
		total += b.Prob()
	}
	return total
}

func (d *Distribution) NumTuples() int {
	n := 0
	for _, b := range d.Branches {
		n += len(b.Scores)
	}
	return n
}

// TeamProb is the probability that team wins the game.
func (d *Distribution) TeamProb(t bracket.TeamID) float64 {
	if b := d.Lookup(TeamKey(t)); b != nil {
		return b.Prob()
	}
	return 0
}
