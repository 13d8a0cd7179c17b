package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"gopkg.in/yaml.v3"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/config"
	"github.com/domino14/bracketsim/testhelpers"
	"github.com/domino14/bracketsim/tourney"
)

func TestExtractFields(t *testing.T) {
	is := is.New(t)
	type testdata struct {
		line   string
		expCmd *shellcmd
		expErr error
	}
	cases := []testdata{
		{"", nil, errNoData},
		{"load /path/to/pool.yaml",
			&shellcmd{"load", []string{"/path/to/pool.yaml"}, CmdOptions{}},
			nil},
		{"odds -game 32 -histogram true",
			&shellcmd{"odds", nil, CmdOptions{"game": {"32"}, "histogram": {"true"}}},
			nil},
		{`optimize "Big Al" -strategy enum -resume true `,
			&shellcmd{"optimize", []string{"Big Al"},
				CmdOptions{"strategy": {"enum"}, "resume": {"true"}}},
			nil,
		},
		{"set seed -1",
			&shellcmd{"set", []string{"seed", "-1"}, CmdOptions{}},
			nil},
		{"optimize A -strategy",
			nil, errWrongOptionSyntax},
	}
	for _, tc := range cases {
		cmd, err := extractFields(tc.line)
		is.Equal(cmd, tc.expCmd)
		is.Equal(err, tc.expErr)
	}
}

func writeToyPool(t *testing.T) string {
	b, table, entries := testhelpers.Toy()
	pf := tourney.PoolFile{}
	for i, n := range testhelpers.Names() {
		rounds := make([]float64, bracket.NumRounds)
		for r := range rounds {
			rounds[r] = table.Cumulative(bracket.TeamID(i), bracket.RoundOf64-r)
		}
		pf.Teams = append(pf.Teams, tourney.TeamSpec{Name: n, Rounds: rounds})
	}
	for _, e := range entries {
		picks := make([]string, bracket.NumGames)
		for g, p := range e.Picks {
			picks[g] = b.TeamName(p)
		}
		pf.Entries = append(pf.Entries, tourney.EntrySpec{Name: e.Name, Picks: picks})
	}
	bts, err := yaml.Marshal(pf)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "pool.yaml")
	if err := os.WriteFile(path, bts, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testController(t *testing.T) (*ShellController, *bytes.Buffer) {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigSeed, uint64(3))
	cfg.Set(config.ConfigCheckpointPath, filepath.Join(t.TempDir(), "checkpoint.db"))
	var buf bytes.Buffer
	sc := newController(cfg, "test", &buf)
	t.Cleanup(sc.Cleanup)
	return sc, &buf
}

func run(sc *ShellController, buf *bytes.Buffer, line string) string {
	buf.Reset()
	sc.executeLine(line)
	return buf.String()
}

func TestCommands(t *testing.T) {
	is := is.New(t)
	sc, buf := testController(t)

	out := run(sc, buf, "odds")
	is.True(strings.Contains(out, errNoPool.Error()))
	out = run(sc, buf, "margins")
	is.True(strings.HasPrefix(out, "Error:"))

	out = run(sc, buf, "load "+writeToyPool(t))
	is.Equal(out, "loaded 2 entries, 63 games left to play\n")

	out = run(sc, buf, "odds")
	lines := strings.Split(out, "\n")
	is.True(strings.HasPrefix(lines[1], "1   "))
	is.True(strings.Contains(out, "A"))
	is.True(strings.Contains(out, "B"))

	out = run(sc, buf, "margins -bins 5")
	is.True(!strings.HasPrefix(out, "Error:"))

	out = run(sc, buf, "game 32")
	is.True(strings.HasPrefix(out, "Game 32 (Round of 32), 4 branches"))
	is.True(strings.Contains(out, "58.900%"))

	out = run(sc, buf, "game 63")
	is.True(strings.HasPrefix(out, "Error:"))

	out = run(sc, buf, "set threads 2")
	is.Equal(out, "set threads to 2\n")
	is.Equal(sc.config.GetInt(config.ConfigThreads), 2)
	out = run(sc, buf, "odds -replicates 3")
	is.True(!strings.HasPrefix(out, "Error:"))
	is.True(strings.Contains(out, "±"))
	out = run(sc, buf, "set bogus 1")
	is.True(strings.HasPrefix(out, "Error:"))
	out = run(sc, buf, "set confidence 100")
	is.True(strings.HasPrefix(out, "Error:"))
	out = run(sc, buf, "set")
	is.True(strings.Contains(out, "threads"))

	out = run(sc, buf, "optimize nobody")
	is.True(strings.HasPrefix(out, "Error:"))
	out = run(sc, buf, "optimize B -strategy sideways")
	is.True(strings.Contains(out, "unknown strategy"))

	out = run(sc, buf, "help")
	is.True(strings.HasPrefix(out, "Commands:"))
	out = run(sc, buf, "help optimize")
	is.True(strings.HasPrefix(out, "optimize <entry>"))
	out = run(sc, buf, "help nothing")
	is.True(strings.Contains(out, "There is no help text"))

	out = run(sc, buf, "frobnicate")
	is.True(strings.Contains(out, "unknown command"))

	is.True(sc.executeLine("exit"))
	is.True(!sc.Interrupt())
}

func TestCompleter(t *testing.T) {
	is := is.New(t)
	sc, _ := testController(t)
	c := NewShellCompleter(sc)
	complete := func(line string) []string {
		m, _ := c.Do([]rune(line), len(line))
		out := make([]string, len(m))
		for i, r := range m {
			out[i] = string(r)
		}
		return out
	}
	is.Equal(complete("op"), []string{"timize"})
	is.Equal(complete("optimize A -strategy "), strategyValues)
	is.Equal(complete("optimize A -strategy d"), []string{"ouble"})
	is.Equal(complete("odds -h"), []string{"istogram"})
}
