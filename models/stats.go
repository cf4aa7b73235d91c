package models

import (
	"encoding/json"
	"math"
)

// StatKey names a cumulative batting counter
type StatKey int

const (
	StatNone StatKey = iota
	StatPlateAppearances
	StatAtBats
	StatHits
	StatWalks
	StatSingles
	StatDoubles
	StatTriples
	StatHomeruns
	StatRunsBattedIn
	StatStrikeouts
	StatGroundOuts
	StatFlyOuts
	StatOuts
	StatDoublePlays
	StatSacrificeBunts
	StatBuntFails
	StatGroundOutAdvances
	StatSacrificeFlies
	StatSluggingPoints

	numStatKeys
)

var statNames = [numStatKeys]string{
	StatNone:              "",
	StatPlateAppearances:  "plate_appearances",
	StatAtBats:            "at_bats",
	StatHits:              "hits",
	StatWalks:             "walks",
	StatSingles:           "singles",
	StatDoubles:           "doubles",
	StatTriples:           "triples",
	StatHomeruns:          "homeruns",
	StatRunsBattedIn:      "runs_batted_in",
	StatStrikeouts:        "strikeouts",
	StatGroundOuts:        "ground_outs",
	StatFlyOuts:           "fly_outs",
	StatOuts:              "outs",
	StatDoublePlays:       "double_plays",
	StatSacrificeBunts:    "sacrifice_bunts",
	StatBuntFails:         "bunt_fails",
	StatGroundOutAdvances: "ground_out_advances",
	StatSacrificeFlies:    "sacrifice_flies",
	StatSluggingPoints:    "slugging_points",
}

func (k StatKey) String() string {
	if k < 0 || k >= numStatKeys {
		return ""
	}
	return statNames[k]
}

// StatKeys lists every counter in display order
func StatKeys() []StatKey {
	keys := make([]StatKey, 0, numStatKeys-1)
	for k := StatPlateAppearances; k < numStatKeys; k++ {
		keys = append(keys, k)
	}
	return keys
}

// Stats holds a player's cumulative counters. The zero value is a reset line.
type Stats struct {
	counts [numStatKeys]int
}

// Get returns the value of one counter
func (s *Stats) Get(k StatKey) int {
	if k <= StatNone || k >= numStatKeys {
		return 0
	}
	return s.counts[k]
}

func (s *Stats) add(k StatKey, n int) {
	if k <= StatNone || k >= numStatKeys {
		return
	}
	s.counts[k] += n
}

// Reset zeroes every counter
func (s *Stats) Reset() {
	s.counts = [numStatKeys]int{}
}

// Map returns the counters keyed by stat name
func (s *Stats) Map() map[string]int {
	m := make(map[string]int, numStatKeys-1)
	for _, k := range StatKeys() {
		m[k.String()] = s.counts[k]
	}
	return m
}

// MarshalJSON encodes the counters as a name → count object
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// BattingAverage is hits / at-bats
func (s *Stats) BattingAverage() float64 {
	return ratio(s.Get(StatHits), s.Get(StatAtBats))
}

// OnBasePercentage is (hits + walks) / plate appearances
func (s *Stats) OnBasePercentage() float64 {
	return ratio(s.Get(StatHits)+s.Get(StatWalks), s.Get(StatPlateAppearances))
}

// SluggingPercentage is slugging points / at-bats
func (s *Stats) SluggingPercentage() float64 {
	return ratio(s.Get(StatSluggingPoints), s.Get(StatAtBats))
}

// OPS is on-base plus slugging
func (s *Stats) OPS() float64 {
	return s.OnBasePercentage() + s.SluggingPercentage()
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}

// StatLine is a display row for one player: every counter plus rounded rates
type StatLine struct {
	Name  string         `json:"name"`
	Stats map[string]int `json:"stats"`
	AVG   float64        `json:"avg"`
	OBP   float64        `json:"obp"`
	SLG   float64        `json:"slg"`
	OPS   float64        `json:"ops"`
}

// round3 rounds to three decimals for display
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
