package tourney

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/probtable"
)

// firstRoundColumn is the Round of 64 column. rd1 is the play-in round.
const firstRoundColumn = "rd2_win"

// ReadForecasts reads a forecast CSV with team_name and rd2_win..rd7_win
// columns. Rows are matched on team_id through ids when both are available,
// otherwise on team name. When gender is set and the file has a gender
// column, other rows are skipped. Only the first row for a team counts, so
// the newest forecast should come first. Unknown teams are an error unless
// the row is flagged as a play-in.
func ReadForecasts(r io.Reader, b *bracket.Bracket, ids map[int]bracket.TeamID, gender string) (map[bracket.TeamID]probtable.Cumulative, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading forecast header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	nameCol, ok := col["team_name"]
	if !ok {
		return nil, errors.New("forecast CSV has no team_name column")
	}
	rd2, ok := col[firstRoundColumn]
	if !ok {
		return nil, fmt.Errorf("forecast CSV has no %s column", firstRoundColumn)
	}
	genderCol, hasGender := col["gender"]
	idCol, hasID := col["team_id"]
	playinCol, hasPlayin := col["playin_flag"]

	// Teams with a known id are matched by id only; the rest by name.
	byID := hasID && len(ids) > 0
	var withID bracket.TeamSet
	for _, t := range ids {
		withID = withID.Add(t)
	}

	out := map[bracket.TeamID]probtable.Cumulative{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading forecasts: %w", err)
		}
		if len(row) < rd2+bracket.NumRounds || len(row) <= nameCol {
			return nil, fmt.Errorf("forecast line %d: too few columns", line)
		}
		if hasGender && gender != "" && row[genderCol] != gender {
			continue
		}

		var team bracket.TeamID
		var found bool
		if byID {
			if id, err := strconv.Atoi(row[idCol]); err == nil {
				team, found = ids[id]
			}
		}
		if !found {
			if t, ok := b.TeamByName(row[nameCol]); ok && (!byID || !withID.Has(t)) {
				team, found = t, true
			}
		}
		if !found {
			if hasPlayin && row[playinCol] != "0" {
				continue
			}
			return nil, fmt.Errorf("forecast line %d: team %q not in bracket", line, row[nameCol])
		}
		if _, seen := out[team]; seen {
			continue
		}
		var c probtable.Cumulative
		for i := range c {
			p, err := strconv.ParseFloat(row[rd2+i], 64)
			if err != nil {
				return nil, fmt.Errorf("forecast line %d: %w", line, err)
			}
			c[i] = p
		}
		out[team] = c
	}
	return out, nil
}
