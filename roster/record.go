// Package roster supplies player records to the simulator from flat files or
// a Postgres database and turns them into lineups.
package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/baseball-sim/lineup-sim/models"
)

// ErrMalformedRecord is returned for roster data that cannot become a Player
var ErrMalformedRecord = errors.New("malformed roster record")

// ErrNotFound is returned when a source has no roster for a team and season
var ErrNotFound = errors.New("roster not found")

// ErrInvalidTeam is returned for team codes that are not safe to look up
var ErrInvalidTeam = errors.New("invalid team")

// PitcherName labels the synthetic pitcher inserted when the DH rule is off
const PitcherName = "Pitcher"

// Record is one player's simulation input
type Record struct {
	Name          string    `json:"name"`
	Probabilities []float64 `json:"probabilities"`
	Speed         float64   `json:"speed"`
}

// Source loads the roster of a team for a season
type Source interface {
	Load(ctx context.Context, team string, season int) ([]Record, error)
}

// Player builds a fresh Player with zeroed stats
func (r Record) Player() (*models.Player, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: missing player name", ErrMalformedRecord)
	}
	return models.NewPlayer(r.Name, r.Probabilities, r.Speed)
}

// Players converts records in order, failing on the first invalid one
func Players(records []Record) ([]*models.Player, error) {
	players := make([]*models.Player, 0, len(records))
	for _, r := range records {
		p, err := r.Player()
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

// PitcherRecord is a weak-hitting batter used in the pitcher's slot
func PitcherRecord() Record {
	return Record{
		Name: PitcherName,
		// single, double, triple, homerun, walk, strikeout, ground_out, fly_out
		Probabilities: []float64{0.09, 0.015, 0.001, 0.004, 0.03, 0.38, 0.288, 0.192},
		Speed:         -2,
	}
}

// ApplyDHRule returns a copy of the lineup. Without the designated hitter
// the pitcher bats ninth, padding a short lineup with its first record.
func ApplyDHRule(lineup []Record, useDH bool) []Record {
	out := make([]Record, len(lineup))
	copy(out, lineup)
	if useDH {
		return out
	}

	if len(out) == 0 {
		return out
	}
	for len(out) < LineupSize {
		out = append(out, out[0])
	}
	out[8] = PitcherRecord()
	return out
}

// Select picks records by name in the given order
func Select(records []Record, names []string) ([]Record, error) {
	byName := make(map[string]Record, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	selected := make([]Record, 0, len(names))
	for _, name := range names {
		if name == PitcherName {
			selected = append(selected, PitcherRecord())
			continue
		}
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: player %q", ErrNotFound, name)
		}
		selected = append(selected, r)
	}
	return selected, nil
}
