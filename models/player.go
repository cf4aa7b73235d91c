package models

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ProbabilityTolerance is the allowed absolute deviation of a probability
// vector's sum from 1.0
const ProbabilityTolerance = 0.01

// ErrInvalidProbabilities is returned when an outcome vector cannot back a Player
var ErrInvalidProbabilities = errors.New("invalid outcome probabilities")

// RNG is the random source used by the simulation. *rand.Rand satisfies it.
type RNG interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRNG returns a seeded source; a zero seed picks one from the clock
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Player represents a batter with a fixed outcome distribution and
// cumulative statistics
type Player struct {
	Name  string  `json:"name"`
	Speed float64 `json:"speed"` // 0 is neutral, positive runs more aggressively
	Stats Stats   `json:"stats"`

	layout        []Outcome
	probabilities []float64
	total         float64
}

// NewPlayer validates the probability vector and builds a Player with zeroed stats.
// The vector follows StandardLayout (8 values) or LegacyLayout (6 values).
func NewPlayer(name string, probabilities []float64, speed float64) (*Player, error) {
	layout, ok := LayoutFor(len(probabilities))
	if !ok {
		return nil, fmt.Errorf("%w: player %q has %d probabilities, want %d or %d",
			ErrInvalidProbabilities, name, len(probabilities), len(StandardLayout), len(LegacyLayout))
	}

	sum := 0.0
	for i, p := range probabilities {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: player %q has invalid %s probability %v",
				ErrInvalidProbabilities, name, layout[i], p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > ProbabilityTolerance {
		return nil, fmt.Errorf("%w: player %q probabilities sum to %.4f",
			ErrInvalidProbabilities, name, sum)
	}

	probs := make([]float64, len(probabilities))
	copy(probs, probabilities)

	return &Player{
		Name:          name,
		Speed:         speed,
		layout:        layout,
		probabilities: probs,
		total:         sum,
	}, nil
}

// Clone returns a copy sharing the distribution but with fresh statistics
func (p *Player) Clone() *Player {
	return &Player{
		Name:          p.Name,
		Speed:         p.Speed,
		layout:        p.layout,
		probabilities: p.probabilities,
		total:         p.total,
	}
}

// Layout returns the outcome order of the player's probability vector
func (p *Player) Layout() []Outcome {
	return p.layout
}

// Probabilities returns a copy of the outcome probabilities in layout order
func (p *Player) Probabilities() []float64 {
	probs := make([]float64, len(p.probabilities))
	copy(probs, p.probabilities)
	return probs
}

// Probability returns the configured probability of one sampled outcome
func (p *Player) Probability(o Outcome) float64 {
	for i, lo := range p.layout {
		if lo == o {
			return p.probabilities[i]
		}
	}
	return 0.0
}

// OutProbability is the chance the batter makes an out on a swing,
// used to decide whether a sacrifice bunt is worth it
func (p *Player) OutProbability() float64 {
	return p.Probability(Strikeout) + p.Probability(GroundOut) + p.Probability(FlyOut) + p.Probability(Out)
}

// ResolvePlateAppearance samples one outcome, records it and returns it along
// with its unforced bases-to-advance value
func (p *Player) ResolvePlateAppearance(rng RNG) (Outcome, int) {
	outcome := p.sample(rng)
	p.Record(outcome)
	return outcome, outcome.Details().BasesToAdvance
}

func (p *Player) sample(rng RNG) Outcome {
	roll := rng.Float64() * p.total
	cumulative := 0.0
	for i, prob := range p.probabilities {
		cumulative += prob
		if roll < cumulative {
			return p.layout[i]
		}
	}

	// roll landed on the upper edge through rounding; take the last
	// outcome that can actually occur
	for i := len(p.probabilities) - 1; i >= 0; i-- {
		if p.probabilities[i] > 0 {
			return p.layout[i]
		}
	}
	panic(fmt.Sprintf("models: player %q has an empty outcome distribution", p.Name))
}

// Record updates counters for an outcome.
//
// Sampled outcomes are complete plate appearances. DoublePlay,
// GroundOutAdvance and SacrificeFly relabel a ground_out/fly_out that has
// already been recorded, so they only touch their own counter (a sacrifice
// fly also gives back the at-bat). Bunts are plate appearances of their own;
// a successful sacrifice is not an at-bat.
func (p *Player) Record(o Outcome) {
	d := o.Details()

	switch o {
	case DoublePlay, GroundOutAdvance:
		p.Stats.add(d.StatKey, 1)
		return
	case SacrificeFly:
		p.Stats.add(d.StatKey, 1)
		p.Stats.add(StatAtBats, -1)
		return
	case SacrificeBunt:
		p.Stats.add(StatPlateAppearances, 1)
		p.Stats.add(d.StatKey, 1)
		return
	case BuntFail:
		p.Stats.add(StatPlateAppearances, 1)
		p.Stats.add(StatAtBats, 1)
		p.Stats.add(d.StatKey, 1)
		return
	}

	p.Stats.add(StatPlateAppearances, 1)
	if !d.IsWalk {
		p.Stats.add(StatAtBats, 1)
	}
	if d.IsHit {
		p.Stats.add(StatHits, 1)
		p.Stats.add(StatSluggingPoints, d.SluggingValue)
	}
	p.Stats.add(d.StatKey, 1)
}

// AddRunsBattedIn credits runs scored on the batter's plate appearance
func (p *Player) AddRunsBattedIn(runs int) {
	if runs > 0 {
		p.Stats.add(StatRunsBattedIn, runs)
	}
}

// ResetStats zeroes every counter
func (p *Player) ResetStats() {
	p.Stats.Reset()
}

// BattingAverage returns hits per at-bat, 0 with no at-bats
func (p *Player) BattingAverage() float64 {
	return p.Stats.BattingAverage()
}

// OnBasePercentage returns times on base per plate appearance
func (p *Player) OnBasePercentage() float64 {
	return p.Stats.OnBasePercentage()
}

// SluggingPercentage returns total bases per at-bat
func (p *Player) SluggingPercentage() float64 {
	return p.Stats.SluggingPercentage()
}

// OPS returns on-base plus slugging
func (p *Player) OPS() float64 {
	return p.Stats.OPS()
}

// StatLine snapshots the player's counters and rates for display
func (p *Player) StatLine() StatLine {
	return StatLine{
		Name:  p.Name,
		Stats: p.Stats.Map(),
		AVG:   round3(p.BattingAverage()),
		OBP:   round3(p.OnBasePercentage()),
		SLG:   round3(p.SluggingPercentage()),
		OPS:   round3(p.OPS()),
	}
}

// StatTable snapshots every player's line in lineup order
func StatTable(players []*Player) []StatLine {
	table := make([]StatLine, 0, len(players))
	for _, p := range players {
		table = append(table, p.StatLine())
	}
	return table
}
