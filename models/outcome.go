package models

import "fmt"

// Outcome is the result of a single plate appearance
type Outcome int

const (
	Single Outcome = iota
	Double
	Triple
	Homerun
	Walk
	Strikeout
	GroundOut
	FlyOut
	Out // legacy catch-all out

	// Derived outcomes are never sampled. The engine computes them from a
	// sampled ground_out/fly_out or from a bunt decision.
	DoublePlay
	GroundOutAdvance
	SacrificeBunt
	BuntFail
	SacrificeFly

	numOutcomes
)

// OutcomeDetails holds the fixed attributes of an outcome type
type OutcomeDetails struct {
	Label          string
	IsHit          bool
	IsWalk         bool
	IsOut          bool
	BasesToAdvance int     // unforced advance for the batter: 0 for outs, 4 for a homerun
	SluggingValue  int     // total bases credited to the batter
	StatKey        StatKey // counter incremented for this outcome, StatNone if none
	Derived        bool
}

var outcomeTable = [numOutcomes]OutcomeDetails{
	Single:           {Label: "single", IsHit: true, BasesToAdvance: 1, SluggingValue: 1, StatKey: StatSingles},
	Double:           {Label: "double", IsHit: true, BasesToAdvance: 2, SluggingValue: 2, StatKey: StatDoubles},
	Triple:           {Label: "triple", IsHit: true, BasesToAdvance: 3, SluggingValue: 3, StatKey: StatTriples},
	Homerun:          {Label: "homerun", IsHit: true, BasesToAdvance: 4, SluggingValue: 4, StatKey: StatHomeruns},
	Walk:             {Label: "walk", IsWalk: true, BasesToAdvance: 1, StatKey: StatWalks},
	Strikeout:        {Label: "strikeout", IsOut: true, StatKey: StatStrikeouts},
	GroundOut:        {Label: "ground_out", IsOut: true, StatKey: StatGroundOuts},
	FlyOut:           {Label: "fly_out", IsOut: true, StatKey: StatFlyOuts},
	Out:              {Label: "out", IsOut: true, StatKey: StatOuts},
	DoublePlay:       {Label: "double_play", IsOut: true, StatKey: StatDoublePlays, Derived: true},
	GroundOutAdvance: {Label: "ground_out_advance", IsOut: true, StatKey: StatGroundOutAdvances, Derived: true},
	SacrificeBunt:    {Label: "sacrifice_bunt", IsOut: true, StatKey: StatSacrificeBunts, Derived: true},
	BuntFail:         {Label: "bunt_fail", IsOut: true, StatKey: StatBuntFails, Derived: true},
	SacrificeFly:     {Label: "sacrifice_fly", IsOut: true, StatKey: StatSacrificeFlies, Derived: true},
}

// StandardLayout is the probability order of an 8-element outcome vector
var StandardLayout = []Outcome{Single, Double, Triple, Homerun, Walk, Strikeout, GroundOut, FlyOut}

// LegacyLayout is the probability order of the older 6-element vector
var LegacyLayout = []Outcome{Single, Double, Triple, Homerun, Walk, Out}

// LayoutFor returns the outcome layout matching a probability vector length
func LayoutFor(n int) ([]Outcome, bool) {
	switch n {
	case len(StandardLayout):
		return StandardLayout, true
	case len(LegacyLayout):
		return LegacyLayout, true
	default:
		return nil, false
	}
}

// Valid reports whether o is a member of the enumeration
func (o Outcome) Valid() bool {
	return o >= 0 && o < numOutcomes
}

// Details returns the fixed attributes of o. It panics on a value outside
// the enumeration.
func (o Outcome) Details() OutcomeDetails {
	if !o.Valid() {
		panic(fmt.Sprintf("models: outcome %d outside enumeration", int(o)))
	}
	return outcomeTable[o]
}

func (o Outcome) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeTable[o].Label
}

// MarshalText encodes the outcome as its label
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome label
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome maps a label such as "ground_out" back to its Outcome
func ParseOutcome(label string) (Outcome, error) {
	for i := Outcome(0); i < numOutcomes; i++ {
		if outcomeTable[i].Label == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", label)
}
