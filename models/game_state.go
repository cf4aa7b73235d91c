package models

import "strings"

// Base indexes a slot in BaseState
type Base int

const (
	First Base = iota
	Second
	Third
)

func (b Base) String() string {
	switch b {
	case First:
		return "first"
	case Second:
		return "second"
	case Third:
		return "third"
	default:
		return "home"
	}
}

// BaseState represents which bases are occupied. A nil slot is empty; an
// occupied slot borrows the runner from the lineup that owns it.
type BaseState [3]*Player

// Runner returns the player on base b, or nil
func (bs BaseState) Runner(b Base) *Player {
	return bs[b]
}

// Occupied reports whether base b has a runner
func (bs BaseState) Occupied(b Base) bool {
	return bs[b] != nil
}

// IsEmpty checks if all bases are empty
func (bs BaseState) IsEmpty() bool {
	return bs[First] == nil && bs[Second] == nil && bs[Third] == nil
}

// Count returns the number of runners on base
func (bs BaseState) Count() int {
	count := 0
	for _, r := range bs {
		if r != nil {
			count++
		}
	}
	return count
}

// Runners returns the runners from first to third
func (bs BaseState) Runners() []*Player {
	var runners []*Player
	for _, r := range bs {
		if r != nil {
			runners = append(runners, r)
		}
	}
	return runners
}

// String renders the occupancy as e.g. "1-3" for runners on first and third
func (bs BaseState) String() string {
	var sb strings.Builder
	for i, r := range bs {
		if r == nil {
			sb.WriteByte('-')
		} else {
			sb.WriteByte(byte('1' + i))
		}
	}
	return sb.String()
}

// PlateAppearance is one entry of an inning log
type PlateAppearance struct {
	Batter  string  `json:"batter"`
	Outcome Outcome `json:"outcome"`
	RBI     int     `json:"rbi"`
}

// InningLog is the chronological sequence of plate appearances in one inning
type InningLog []PlateAppearance

// Runs totals the runs driven in during the inning
func (l InningLog) Runs() int {
	runs := 0
	for _, pa := range l {
		runs += pa.RBI
	}
	return runs
}

// GameResult is the final score and inning-by-inning log of one game
type GameResult struct {
	Score   int         `json:"score"`
	Innings []InningLog `json:"innings"`
}

// LineScore returns runs per inning
func (r GameResult) LineScore() []int {
	line := make([]int, len(r.Innings))
	for i, inning := range r.Innings {
		line[i] = inning.Runs()
	}
	return line
}
