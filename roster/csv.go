package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/baseball-sim/lineup-sim/models"
)

// CSV column names
const (
	ColumnPlayer    = "Player"
	ColumnSpeed     = "Speed"
	ColumnLegacyOut = "Out_ratio"
)

// StandardColumns are the probability columns of the 8-outcome layout
var StandardColumns = []string{
	"1B_ratio", "2B_ratio", "3B_ratio", "HR_ratio", "BB+HBP_ratio",
	"SO_ratio", "Ground_Out_ratio", "Fly_Out_ratio",
}

// LegacyColumns are the probability columns of the 6-outcome layout
var LegacyColumns = []string{
	"1B_ratio", "2B_ratio", "3B_ratio", "HR_ratio", "BB+HBP_ratio", ColumnLegacyOut,
}

// Table is the parsed content of a roster file
type Table struct {
	Records  []Record
	Warnings []string
}

// LoadCSV parses a roster file. The standard columns are used when present,
// otherwise the legacy Out_ratio layout; Speed is optional and defaults to 0.
// A row whose probabilities miss 1.0 by more than the tolerance gets its last
// out column adjusted with a warning, and is skipped if that would go negative.
func LoadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("%w: empty roster file", ErrMalformedRecord)
		}
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := headerIndex(header)
	nameCol, ok := index[ColumnPlayer]
	if !ok {
		return Table{}, fmt.Errorf("%w: missing %q column", ErrMalformedRecord, ColumnPlayer)
	}
	probCols, err := probabilityColumns(index)
	if err != nil {
		return Table{}, err
	}
	speedCol, hasSpeed := index[ColumnSpeed]

	var table Table
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}

		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			return Table{}, fmt.Errorf("%w: line %d: missing player name", ErrMalformedRecord, line)
		}

		probs := make([]float64, len(probCols))
		for i, col := range probCols {
			v, err := parseFloatCell(row[col])
			if err != nil {
				return Table{}, fmt.Errorf("%w: line %d: %s %s: %v", ErrMalformedRecord, line, name, header[col], err)
			}
			probs[i] = v
		}

		speed := 0.0
		if hasSpeed && strings.TrimSpace(row[speedCol]) != "" {
			speed, err = parseFloatCell(row[speedCol])
			if err != nil {
				return Table{}, fmt.Errorf("%w: line %d: %s speed: %v", ErrMalformedRecord, line, name, err)
			}
		}

		if warning, ok := normalize(name, probs); warning != "" {
			log.Warn().Str("player", name).Int("line", line).Msg(warning)
			table.Warnings = append(table.Warnings, warning)
			if !ok {
				continue
			}
		}

		table.Records = append(table.Records, Record{Name: name, Probabilities: probs, Speed: speed})
	}

	return table, nil
}

// headerIndex maps column names to positions, ignoring a leading BOM
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	return index
}

func probabilityColumns(index map[string]int) ([]int, error) {
	for _, layout := range [][]string{StandardColumns, LegacyColumns} {
		cols := make([]int, 0, len(layout))
		for _, name := range layout {
			i, ok := index[name]
			if !ok {
				break
			}
			cols = append(cols, i)
		}
		if len(cols) == len(layout) {
			return cols, nil
		}
	}
	return nil, fmt.Errorf("%w: need columns %s or %s", ErrMalformedRecord,
		strings.Join(StandardColumns, ","), strings.Join(LegacyColumns, ","))
}

func parseFloatCell(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", cell)
	}
	return v, nil
}

// normalize adjusts the last out column so the row sums to 1.0 when it is off
// by more than the tolerance. It returns a warning when it touched the row and
// false when the row cannot be fixed.
func normalize(name string, probs []float64) (string, bool) {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1.0) <= models.ProbabilityTolerance {
		return "", true
	}

	last := len(probs) - 1
	adjusted := 1.0 - (sum - probs[last])
	if adjusted < 0 {
		return fmt.Sprintf("probabilities for %s sum to %.4f and cannot be normalized, skipping", name, sum), false
	}
	probs[last] = adjusted
	return fmt.Sprintf("probabilities for %s sum to %.4f, adjusted last out column to %.4f", name, sum, adjusted), true
}

// CSVSource reads rosters from files named {season}_{team}.csv in Dir
type CSVSource struct {
	Dir string
}

// Path returns the file a team's roster is read from
func (s CSVSource) Path(team string, season int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d_%s.csv", season, team))
}

// Load reads and parses the team's roster file
func (s CSVSource) Load(ctx context.Context, team string, season int) ([]Record, error) {
	if err := ValidateTeam(team); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(team, season))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s %d", ErrNotFound, team, season)
		}
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	table, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path(team, season), err)
	}
	return table.Records, nil
}

// ValidateTeam accepts short team codes made of letters, digits, '-' and '_'
func ValidateTeam(team string) error {
	if team == "" || len(team) > 32 {
		return fmt.Errorf("%w %q", ErrInvalidTeam, team)
	}
	for _, c := range team {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("%w %q", ErrInvalidTeam, team)
		}
	}
	return nil
}
