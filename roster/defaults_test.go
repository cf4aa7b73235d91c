package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultLineups = "\uFEFFTeam,Position,Player\n" + `NYY,RF,Right Fielder
NYY,C,Catcher
NYY,utility,Bench
NYY,SS,Shortstop
SEA,DH,Hitter
`

func namedRecords(names ...string) []Record {
	records := make([]Record, len(names))
	for i, name := range names {
		records[i] = Record{Name: name}
	}
	return records
}

func TestLoadDefaultLineups(t *testing.T) {
	lineups, err := LoadDefaultLineups(strings.NewReader(defaultLineups))
	require.NoError(t, err)

	assert.Equal(t, []string{"Catcher", "Shortstop", "Right Fielder", "Bench"}, lineups["NYY"])
	assert.Equal(t, []string{"Hitter"}, lineups["SEA"])
}

func TestLoadDefaultLineupsFileOrder(t *testing.T) {
	lineups, err := LoadDefaultLineups(strings.NewReader("Player,Team\nB,NYY\nA,NYY\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, lineups["NYY"])
}

func TestLoadDefaultLineupsErrors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":          "",
		"no team column": "Player\nA\n",
		"no player":      "Team,Player\nNYY,\n",
		"short row":      "Team,Position,Player\nNYY,C\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadDefaultLineups(strings.NewReader(data))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestDefaultLineupFile(t *testing.T) {
	dir := t.TempDir()
	file := DefaultLineupFile{Dir: dir}
	require.NoError(t, os.WriteFile(file.Path(2023), []byte(defaultLineups), 0o644))
	assert.Equal(t, filepath.Join(dir, "default_lineups_2023.csv"), file.Path(2023))

	starters, err := file.DefaultLineup(context.Background(), "nyy", 2023)
	require.NoError(t, err)
	assert.Len(t, starters, 4)

	_, err = file.DefaultLineup(context.Background(), "BOS", 2023)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = file.DefaultLineup(context.Background(), "NYY", 2022)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = file.DefaultLineup(context.Background(), "../x", 2023)
	assert.True(t, errors.Is(err, ErrInvalidTeam))
}

func TestFillLineup(t *testing.T) {
	names := make([]string, 12)
	for i := range names {
		names[i] = fmt.Sprintf("R%d", i+1)
	}
	records := namedRecords(names...)

	// eight starters get a ninth from the roster
	starters := []string{"R5", "R3", "R1", "R12", "R7", "R2", "R9", "R4"}
	filled := FillLineup(starters, records)
	assert.Equal(t, append(starters[:8:8], "R6"), filled)

	// unknown and repeated starters are dropped
	filled = FillLineup([]string{"Gone", "R2", "R2"}, records)
	assert.Equal(t, []string{"R2", "R1", "R3", "R4", "R5", "R6", "R7", "R8", "R9"}, filled)

	assert.Len(t, FillLineup(names, records), LineupSize)
	assert.Equal(t, []string{"R1", "R2"}, FillLineup(nil, namedRecords("R1", "R2")))
}
