// Package tourney loads a pool from disk: the field of 64 teams, real results
// so far, per-round forecasts, and everyone's picks.
package tourney

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
)

// PoolFile is the on-disk layout.
//
//	teams:       64 teams in bracket order, optionally with an external id
//	             (matched against the forecast CSV) and inline rounds
//	results:     game index -> winner name
//	forecasts:   CSV path, relative to the pool file
//	entries:     name plus 63 picks by team name, in game order
type PoolFile struct {
	Teams     []TeamSpec     `yaml:"teams"`
	Results   map[int]string `yaml:"results,omitempty"`
	Forecasts string         `yaml:"forecasts,omitempty"`
	Gender    string         `yaml:"gender,omitempty"`
	Entries   []EntrySpec    `yaml:"entries"`
}

type TeamSpec struct {
	Name string `yaml:"name"`
	ID   int    `yaml:"id,omitempty"`
	// Rounds are cumulative win probabilities, Round of 64 first.
	Rounds []float64 `yaml:"rounds,omitempty,flow"`
}

type EntrySpec struct {
	Name  string   `yaml:"name"`
	Picks []string `yaml:"picks"`
}

// Pool is everything the engine needs.
type Pool struct {
	Bracket *bracket.Bracket
	Table   *probtable.Table
	Entries []bracket.Entry
}

func LoadPool(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePool(f, filepath.Dir(path))
}

// ParsePool reads a pool file. dir resolves a relative forecasts path.
func ParsePool(r io.Reader, dir string) (*Pool, error) {
	var pf PoolFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		return nil, fmt.Errorf("decoding pool: %w", err)
	}
	b, err := bracket.New(lo.Map(pf.Teams, func(t TeamSpec, _ int) string { return t.Name }))
	if err != nil {
		return nil, err
	}
	for game, name := range pf.Results {
		t, ok := b.TeamByName(name)
		if !ok {
			return nil, fmt.Errorf("result for game %d: unknown team %q", game, name)
		}
		if err := b.SetWinner(game, t); err != nil {
			return nil, err
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	forecasts, err := pf.forecasts(b, dir)
	if err != nil {
		return nil, err
	}

	entries := make([]bracket.Entry, len(pf.Entries))
	for i, es := range pf.Entries {
		if len(es.Picks) != bracket.NumGames {
			return nil, fmt.Errorf("entry %q has %d picks, want %d", es.Name, len(es.Picks), bracket.NumGames)
		}
		entries[i].Name = es.Name
		for g, name := range es.Picks {
			t, ok := b.TeamByName(name)
			if !ok {
				return nil, fmt.Errorf("entry %q game %d: unknown team %q", es.Name, g, name)
			}
			entries[i].Picks[g] = t
		}
		if err := entries[i].Check(); err != nil {
			return nil, err
		}
	}
	if err := probtable.Check(forecasts); err != nil {
		return nil, err
	}
	return &Pool{Bracket: b, Table: probtable.New(forecasts), Entries: entries}, nil
}

func (pf *PoolFile) forecasts(b *bracket.Bracket, dir string) (map[bracket.TeamID]probtable.Cumulative, error) {
	forecasts := map[bracket.TeamID]probtable.Cumulative{}
	if pf.Forecasts != "" {
		path := pf.Forecasts
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ids := map[int]bracket.TeamID{}
		for i, t := range pf.Teams {
			if t.ID != 0 {
				ids[t.ID] = bracket.TeamID(i)
			}
		}
		gender := pf.Gender
		if gender == "" {
			gender = "mens"
		}
		if forecasts, err = ReadForecasts(f, b, ids, gender); err != nil {
			return nil, err
		}
	}
	// Inline rounds override the CSV.
	for i, t := range pf.Teams {
		if len(t.Rounds) == 0 {
			continue
		}
		if len(t.Rounds) != bracket.NumRounds {
			return nil, fmt.Errorf("team %q has %d rounds, want %d", t.Name, len(t.Rounds), bracket.NumRounds)
		}
		var c probtable.Cumulative
		copy(c[:], t.Rounds)
		forecasts[bracket.TeamID(i)] = c
	}
	var missing []string
	for i := 0; i < bracket.NumTeams; i++ {
		if _, ok := forecasts[bracket.TeamID(i)]; !ok {
			missing = append(missing, b.Teams[i].Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no forecast for %d teams: %v", len(missing), missing)
	}
	return forecasts, nil
}
