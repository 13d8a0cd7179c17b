package bracket

import (
	"fmt"
	"math/bits"
	"strings"
)

// TeamID is a stable zero-based team index in bracket order.
type TeamID int8

const NoTeam TeamID = -1

func (t TeamID) Valid() bool {
	return t >= 0 && t < NumTeams
}

type Team struct {
	ID   TeamID
	Name string
}

// Slot is the source of one side of a game: a concrete team in the Round of
// 64, the winner of an earlier game afterwards.
type Slot interface {
	isSlot()
	String() string
}

type TeamSlot struct {
	Team TeamID
}

type WinnerOf struct {
	Game int
}

func (TeamSlot) isSlot() {}
func (WinnerOf) isSlot() {}

func (s TeamSlot) String() string { return fmt.Sprintf("team %d", s.Team) }
func (s WinnerOf) String() string { return fmt.Sprintf("winner of game %d", s.Game) }

type Game struct {
	ID    int
	Slots [2]Slot
	// Winner is the real-world result, or NoTeam if the game is not decided.
	Winner TeamID
}

func (g *Game) Decided() bool {
	return g.Winner != NoTeam
}

// Bracket is the immutable tournament shape plus known results. Build it once
// with New and SetWinner, then share it read-only.
type Bracket struct {
	Teams [NumTeams]Team
	Games [NumGames]Game
}

// New lays out the canonical bracket: game g < 32 pairs teams 2g and 2g+1,
// and each later game takes the winners of its two inputs.
func New(names []string) (*Bracket, error) {
	if len(names) != NumTeams {
		return nil, fmt.Errorf("need %d team names, got %d", NumTeams, len(names))
	}
	b := &Bracket{}
	for i, n := range names {
		b.Teams[i] = Team{ID: TeamID(i), Name: n}
	}
	for g := 0; g < NumGames; g++ {
		game := Game{ID: g, Winner: NoTeam}
		if first, second, ok := Inputs(g); ok {
			game.Slots = [2]Slot{WinnerOf{first}, WinnerOf{second}}
		} else {
			game.Slots = [2]Slot{TeamSlot{TeamID(2 * g)}, TeamSlot{TeamID(2*g + 1)}}
		}
		b.Games[g] = game
	}
	return b, nil
}

// FirstRoundTeams returns the two concrete teams of a Round of 64 game.
func (b *Bracket) FirstRoundTeams(game int) (TeamID, TeamID) {
	g := &b.Games[game]
	first, ok1 := g.Slots[0].(TeamSlot)
	second, ok2 := g.Slots[1].(TeamSlot)
	if !ok1 || !ok2 {
		panic(fmt.Sprintf("game %d is not a Round of 64 game", game))
	}
	return first.Team, second.Team
}

// SetWinner records a real-world result.
func (b *Bracket) SetWinner(game int, team TeamID) error {
	if game < 0 || game >= NumGames {
		return fmt.Errorf("game %d out of range", game)
	}
	if team != NoTeam && !Eligible(game).Has(team) {
		return Inconsistent(game, "team %d cannot reach this game", team)
	}
	b.Games[game].Winner = team
	return nil
}

// Validate checks that every decided game was won by the winner of one of
// its inputs.
func (b *Bracket) Validate() error {
	for g := range b.Games {
		game := &b.Games[g]
		if !game.Decided() {
			continue
		}
		first, second, ok := Inputs(g)
		if !ok {
			t1, t2 := b.FirstRoundTeams(g)
			if game.Winner != t1 && game.Winner != t2 {
				return Inconsistent(g, "winner %d did not play in this game", game.Winner)
			}
			continue
		}
		w1, w2 := b.Games[first].Winner, b.Games[second].Winner
		if w1 == NoTeam || w2 == NoTeam {
			return Inconsistent(g, "decided before its inputs %d and %d", first, second)
		}
		if game.Winner != w1 && game.Winner != w2 {
			return Inconsistent(g, "winner %d did not win an input game", game.Winner)
		}
	}
	return nil
}

func (b *Bracket) TeamByName(name string) (TeamID, bool) {
	for _, t := range b.Teams {
		if strings.EqualFold(t.Name, name) {
			return t.ID, true
		}
	}
	return NoTeam, false
}

func (b *Bracket) TeamName(t TeamID) string {
	if !t.Valid() {
		return "other"
	}
	return b.Teams[t].Name
}

// Undecided lists the games without a real-world result.
func (b *Bracket) Undecided() []int {
	var games []int
	for g := range b.Games {
		if !b.Games[g].Decided() {
			games = append(games, g)
		}
	}
	return games
}

// Eligible is the set of teams that can possibly play in game.
func Eligible(game int) TeamSet {
	ri := GameRound(game)
	span := NumTeams >> ri.Round
	lo := (ri.Index - 1) * span
	if span == NumTeams {
		return ^TeamSet(0)
	}
	return TeamSet(((uint64(1) << span) - 1) << lo)
}

// Entry is one participant's predicted winner for every game.
type Entry struct {
	Name  string
	Picks [NumGames]TeamID
}

// Check verifies that every pick names a team that could play in its game.
func (e *Entry) Check() error {
	for g, p := range e.Picks {
		if !p.Valid() {
			return Inconsistent(g, "entry %q picks invalid team %d", e.Name, p)
		}
		if !Eligible(g).Has(p) {
			return Inconsistent(g, "entry %q picks team %d which cannot reach this game", e.Name, p)
		}
	}
	return nil
}

// Consistent verifies that each pick past the Round of 64 is one of the
// entry's picks for the two feeder games.
func (e *Entry) Consistent() error {
	for g, p := range e.Picks {
		first, second, ok := Inputs(g)
		if !ok {
			continue
		}
		if p != e.Picks[first] && p != e.Picks[second] {
			return Inconsistent(g, "entry %q picks team %d without advancing it", e.Name, p)
		}
	}
	return nil
}

// TeamSet is a bitset over the 64 teams.
type TeamSet uint64

func (s TeamSet) Has(t TeamID) bool {
	return t.Valid() && s&(1<<uint(t)) != 0
}

func (s TeamSet) Add(t TeamID) TeamSet {
	if !t.Valid() {
		return s
	}
	return s | 1<<uint(t)
}

func (s TeamSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

func (s TeamSet) Teams() []TeamID {
	var teams []TeamID
	for v := uint64(s); v != 0; v &= v - 1 {
		teams = append(teams, TeamID(bits.TrailingZeros64(v)))
	}
	return teams
}

// Selections records, per game, which teams at least one entry picked to win
// it.
func Selections(entries []Entry) [NumGames]TeamSet {
	var sel [NumGames]TeamSet
	for _, e := range entries {
		for g, p := range e.Picks {
			sel[g] = sel[g].Add(p)
		}
	}
	return sel
}
