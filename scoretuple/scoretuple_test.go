package scoretuple

import (
	"testing"

	"github.com/matryer/is"
	"lukechampine.com/frand"

	"github.com/domino14/bracketsim/bracket"
)

func randomTuples(count, n int) []ScoreTuple {
	rng := frand.NewCustom(make([]byte, 32), 1024, 12)
	ts := make([]ScoreTuple, count)
	for i := range ts {
		vals := make([]uint8, n)
		for j := range vals {
			vals[j] = uint8(rng.Intn(60))
		}
		ts[i] = New(vals...)
	}
	return ts
}

func ranking(t ScoreTuple, n int) []int {
	// pairwise comparison signs are enough to capture a ranking.
	var out []int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := t.Get(i), t.Get(j)
			switch {
			case a > b:
				out = append(out, 1)
			case a < b:
				out = append(out, -1)
			default:
				out = append(out, 0)
			}
		}
	}
	return out
}

func TestPackAndGet(t *testing.T) {
	is := is.New(t)
	st := New(3, 0, 17, 255)
	is.Equal(st.Get(0), uint8(3))
	is.Equal(st.Get(1), uint8(0))
	is.Equal(st.Get(2), uint8(17))
	is.Equal(st.Get(3), uint8(255))
	is.Equal(st.Get(7), uint8(0))
	is.Equal(st.Format(4), "(30, 0, 170, 2550)")
}

func TestNormalize(t *testing.T) {
	is := is.New(t)
	st := New(4, 6, 5)
	is.Equal(st.Normalize(3), New(0, 2, 1))

	for _, n := range []int{1, 3, 8} {
		for _, tup := range randomTuples(200, n) {
			norm := tup.Normalize(n)
			is.Equal(norm.Min(n), uint8(0))
			is.Equal(norm.Normalize(n), norm)
			is.Equal(norm.Winner(n), tup.Winner(n))
			is.Equal(norm.RunnerUp(n), tup.RunnerUp(n))
			is.Equal(ranking(norm, n), ranking(tup, n))
		}
	}
}

func TestNormalizeIgnoresUnusedBytes(t *testing.T) {
	is := is.New(t)
	// only three entries; the zero bytes above them must not pin the min.
	st := New(7, 9, 8)
	is.Equal(st.Normalize(3), New(0, 2, 1))
}

func TestAddProperties(t *testing.T) {
	is := is.New(t)
	n := 5
	ts := randomTuples(90, n)
	for i := 0; i+2 < len(ts); i += 3 {
		a, b, c := ts[i], ts[i+1], ts[i+2]
		is.Equal(a.Add(b), b.Add(a))
		is.Equal(a.Add(b).Add(c), a.Add(b.Add(c)))
		for j := 0; j < n; j++ {
			is.Equal(a.Add(b).Get(j), a.Get(j)+b.Get(j))
		}
		// combining normalized tuples ranks the same as combining originals.
		combined := a.Add(b).Normalize(n)
		viaNorm := a.Normalize(n).Add(b.Normalize(n)).Normalize(n)
		is.Equal(ranking(combined, n), ranking(viaNorm, n))
		is.Equal(combined, viaNorm)
	}
}

func TestWinnerAndRunnerUp(t *testing.T) {
	is := is.New(t)
	type tc struct {
		t        ScoreTuple
		n        int
		winner   int
		runnerUp int
		margin   int
	}
	cases := []tc{
		{New(1, 5, 3), 3, 1, 2, 2},
		{New(5, 5, 3), 3, 0, 1, 0},
		{New(2, 2, 2, 2), 4, 0, 1, 0},
		{New(0, 3, 9, 9), 4, 2, 3, 0},
		{New(9, 1, 4, 4), 4, 0, 2, 5},
		{New(6), 1, 0, -1, 0},
	}
	for _, c := range cases {
		is.Equal(c.t.Winner(c.n), c.winner)
		is.Equal(c.t.RunnerUp(c.n), c.runnerUp)
		is.Equal(c.t.Margin(c.n), c.margin)
	}
}

func TestForWinner(t *testing.T) {
	is := is.New(t)
	entries := make([]bracket.Entry, 3)
	entries[0].Picks[4] = 8
	entries[1].Picks[4] = 9
	entries[2].Picks[4] = 8
	is.Equal(ForWinner(entries, 4, 8, 1), New(1, 0, 1))
	is.Equal(ForWinner(entries, 4, 9, 1), New(0, 1, 0))
	is.Equal(ForWinner(entries, 4, bracket.NoTeam, 1), ScoreTuple(0))
}
