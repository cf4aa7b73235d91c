package models

import "fmt"

const (
	DefaultInnings              = 9
	DefaultBuntAggressiveness   = 0.1
	DefaultBuntSuccessRate      = 0.8
	DefaultDoublePlayRate       = 0.5
	DefaultGroundOutAdvanceRate = 0.5
)

// Rules holds the situational probabilities the engine applies on top of
// each batter's own distribution
type Rules struct {
	Innings              int     `json:"innings" mapstructure:"innings"`
	BuntAggressiveness   float64 `json:"bunt_aggressiveness" mapstructure:"bunt_aggressiveness"`
	BuntSuccessRate      float64 `json:"bunt_success_rate" mapstructure:"bunt_success_rate"`
	DoublePlayRate       float64 `json:"double_play_rate" mapstructure:"double_play_rate"`
	GroundOutAdvanceRate float64 `json:"ground_out_advance_rate" mapstructure:"ground_out_advance_rate"`
	SacrificeFlyRate     float64 `json:"sacrifice_fly_rate" mapstructure:"sacrifice_fly_rate"` // 0 disables sacrifice flies
}

// DefaultRules returns the standard nine-inning rule set
func DefaultRules() Rules {
	return Rules{
		Innings:              DefaultInnings,
		BuntAggressiveness:   DefaultBuntAggressiveness,
		BuntSuccessRate:      DefaultBuntSuccessRate,
		DoublePlayRate:       DefaultDoublePlayRate,
		GroundOutAdvanceRate: DefaultGroundOutAdvanceRate,
	}
}

// Validate checks that every rate is a probability
func (r Rules) Validate() error {
	if r.Innings < 1 {
		return fmt.Errorf("innings must be positive, got %d", r.Innings)
	}
	if r.BuntAggressiveness < 0 {
		return fmt.Errorf("bunt aggressiveness must not be negative, got %v", r.BuntAggressiveness)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"bunt success rate", r.BuntSuccessRate},
		{"double play rate", r.DoublePlayRate},
		{"ground out advance rate", r.GroundOutAdvanceRate},
		{"sacrifice fly rate", r.SacrificeFlyRate},
	}
	for _, rate := range rates {
		if rate.value < 0 || rate.value > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", rate.name, rate.value)
		}
	}
	return nil
}
