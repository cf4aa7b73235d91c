package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default lineup column names
const (
	ColumnTeam     = "Team"
	ColumnPosition = "Position"
)

// LineupSize is the number of starters in a default lineup
const LineupSize = 9

// PositionOrder is the order starters are listed in when the file carries a
// Position column. Unknown positions sort last.
var PositionOrder = []string{"C", "1B", "2B", "3B", "SS", "LF", "CF", "RF", "DH"}

// DefaultLineupSource looks up a team's usual starters
type DefaultLineupSource interface {
	DefaultLineup(ctx context.Context, team string, season int) ([]string, error)
}

// DefaultLineupFile reads default_lineups_{season}.csv in Dir. Each row names
// a team and one of its most frequent starters.
type DefaultLineupFile struct {
	Dir string
}

// Path returns the file a season's default lineups are read from
func (f DefaultLineupFile) Path(season int) string {
	return filepath.Join(f.Dir, fmt.Sprintf("default_lineups_%d.csv", season))
}

// DefaultLineup returns the team's starters, or ErrNotFound when the season has
// no file or the team no rows
func (f DefaultLineupFile) DefaultLineup(ctx context.Context, team string, season int) ([]string, error) {
	if err := ValidateTeam(team); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path(season))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no default lineups for %d", ErrNotFound, season)
		}
		return nil, fmt.Errorf("failed to open default lineups: %w", err)
	}
	defer file.Close()

	lineups, err := LoadDefaultLineups(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path(season), err)
	}

	for name, players := range lineups {
		if strings.EqualFold(name, team) {
			return players, nil
		}
	}
	return nil, fmt.Errorf("%w: no default lineup for %s %d", ErrNotFound, team, season)
}

type starter struct {
	name  string
	order int
}

// LoadDefaultLineups parses a default lineup file into starters per team
func LoadDefaultLineups(r io.Reader) (map[string][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty default lineup file", ErrMalformedRecord)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := headerIndex(header)
	teamCol, ok := index[ColumnTeam]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformedRecord, ColumnTeam)
	}
	playerCol, ok := index[ColumnPlayer]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformedRecord, ColumnPlayer)
	}
	posCol, hasPos := index[ColumnPosition]

	byTeam := make(map[string][]starter)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}

		team := strings.TrimSpace(row[teamCol])
		name := strings.TrimSpace(row[playerCol])
		if team == "" || name == "" {
			return nil, fmt.Errorf("%w: line %d: missing team or player", ErrMalformedRecord, line)
		}

		order := len(PositionOrder)
		if hasPos {
			order = positionRank(row[posCol])
		}
		byTeam[team] = append(byTeam[team], starter{name: name, order: order})
	}

	lineups := make(map[string][]string, len(byTeam))
	for team, starters := range byTeam {
		sort.SliceStable(starters, func(i, j int) bool {
			return starters[i].order < starters[j].order
		})
		names := make([]string, len(starters))
		for i, s := range starters {
			names[i] = s.name
		}
		lineups[team] = names
	}
	return lineups, nil
}

func positionRank(position string) int {
	position = strings.ToUpper(strings.TrimSpace(position))
	for i, p := range PositionOrder {
		if p == position {
			return i
		}
	}
	return len(PositionOrder)
}

// FillLineup completes a list of starters to LineupSize names. Starters
// missing from the roster are dropped, then roster players not yet listed are
// added in roster order. A list longer than LineupSize is cut.
func FillLineup(starters []string, records []Record) []string {
	onRoster := make(map[string]bool, len(records))
	for _, r := range records {
		onRoster[r.Name] = true
	}

	taken := make(map[string]bool, LineupSize)
	names := make([]string, 0, LineupSize)
	for _, name := range starters {
		if len(names) == LineupSize {
			break
		}
		if onRoster[name] && !taken[name] {
			names = append(names, name)
			taken[name] = true
		}
	}
	for _, r := range records {
		if len(names) == LineupSize {
			break
		}
		if !taken[r.Name] {
			names = append(names, r.Name)
			taken[r.Name] = true
		}
	}
	return names
}
