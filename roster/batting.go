package roster

import (
	"fmt"
	"strconv"
)

const (
	// MinPlateAppearances filters out players with too small a sample
	MinPlateAppearances = 50
	// GroundOutShare splits non-strikeout outs between ground and fly balls
	GroundOutShare = 0.6
	// rareEventFloor keeps extra-base hits possible for players who had none
	rareEventFloor = 1e-4
)

// BattingLine holds a player's season counting stats
type BattingLine struct {
	Name    string
	PA      int
	H       int
	Doubles int
	Triples int
	HR      int
	BB      int
	HBP     int
	SO      int
	SB      int
	CS      int
}

// SpeedScore rates baserunning from triples and steals
func (b BattingLine) SpeedScore() float64 {
	return float64(b.Triples*3 + b.SB - b.CS*2)
}

// Record converts counting stats into a standard-layout Record: rates per
// plate appearance, non-strikeout outs split between ground and fly balls,
// a small floor on extra-base hits and a final renormalization.
func (b BattingLine) Record() (Record, error) {
	if b.PA < MinPlateAppearances {
		return Record{}, fmt.Errorf("%w: %s has %d plate appearances, need %d",
			ErrMalformedRecord, b.Name, b.PA, MinPlateAppearances)
	}

	singles := b.H - b.Doubles - b.Triples - b.HR
	if singles < 0 {
		return Record{}, fmt.Errorf("%w: %s has more extra-base hits than hits", ErrMalformedRecord, b.Name)
	}

	pa := float64(b.PA)
	probs := []float64{
		float64(singles) / pa,
		float64(b.Doubles) / pa,
		float64(b.Triples) / pa,
		float64(b.HR) / pa,
		float64(b.BB+b.HBP) / pa,
		float64(b.SO) / pa,
		0,
		0,
	}

	used := 0.0
	for _, p := range probs[:6] {
		used += p
	}
	remaining := 1 - used
	if remaining < 0 {
		remaining = 0
	}
	probs[6] = remaining * GroundOutShare
	probs[7] = remaining * (1 - GroundOutShare)

	for i := 1; i <= 3; i++ {
		if probs[i] == 0 {
			probs[0] -= rareEventFloor
			probs[i] = rareEventFloor
		}
	}

	total := 0.0
	for _, p := range probs {
		total += p
	}
	for i, p := range probs {
		probs[i] = p / total
		if probs[i] < 0 {
			return Record{}, fmt.Errorf("%w: %s has negative rates", ErrMalformedRecord, b.Name)
		}
	}

	return Record{
		Name:          b.Name,
		Probabilities: probs,
		Speed:         b.SpeedScore(),
	}, nil
}

// battingLineFromStats reads a loosely typed stats object such as a JSONB
// aggregate column
func battingLineFromStats(name string, stats map[string]interface{}) BattingLine {
	return BattingLine{
		Name:    name,
		PA:      getIntFromStats(stats, "PA", 0),
		H:       getIntFromStats(stats, "H", 0),
		Doubles: getIntFromStats(stats, "2B", 0),
		Triples: getIntFromStats(stats, "3B", 0),
		HR:      getIntFromStats(stats, "HR", 0),
		BB:      getIntFromStats(stats, "BB", 0),
		HBP:     getIntFromStats(stats, "HBP", 0),
		SO:      getIntFromStats(stats, "SO", 0),
		SB:      getIntFromStats(stats, "SB", 0),
		CS:      getIntFromStats(stats, "CS", 0),
	}
}

func getIntFromStats(stats map[string]interface{}, key string, defaultValue int) int {
	if val, exists := stats[key]; exists {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return defaultValue
}
