package simulation

import (
	"fmt"

	"github.com/baseball-sim/lineup-sim/models"
)

const outsPerInning = 3

// Game drives innings for one batting order. The lineup slice owns the
// players; bases only borrow them.
type Game struct {
	lineup []*models.Player
	rules  models.Rules
	rng    models.RNG

	next  int
	score int
	outs  int
	bases models.BaseState
	log   []models.InningLog
}

// NewGame creates a game engine over a batting order of LineupSize distinct
// players
func NewGame(lineup []*models.Player, rules models.Rules, rng models.RNG) (*Game, error) {
	if len(lineup) != LineupSize {
		return nil, fmt.Errorf("%w: batting order needs %d players, got %d", ErrInvalidLineup, LineupSize, len(lineup))
	}
	if err := checkDistinct(lineup, "batting slot"); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	return &Game{
		lineup: lineup,
		rules:  rules,
		rng:    rng,
	}, nil
}

// Play simulates a full game and returns the score and inning log. A
// non-positive innings count falls back to the configured rules. Stats on the
// lineup's players accumulate across calls.
func (g *Game) Play(innings int) models.GameResult {
	if innings <= 0 {
		innings = g.rules.Innings
	}

	g.next = 0
	g.score = 0
	g.log = make([]models.InningLog, 0, innings)

	for i := 0; i < innings; i++ {
		g.log = append(g.log, g.playInning())
	}

	g.outs = 0
	g.bases = models.BaseState{}

	return models.GameResult{
		Score:   g.score,
		Innings: g.log,
	}
}

// Score returns the runs scored so far in the current game
func (g *Game) Score() int {
	return g.score
}

// Outs returns the current out count
func (g *Game) Outs() int {
	return g.outs
}

// Bases returns a copy of the current base occupancy
func (g *Game) Bases() models.BaseState {
	return g.bases
}

func (g *Game) playInning() models.InningLog {
	g.outs = 0
	g.bases = models.BaseState{}

	var inning models.InningLog
	for g.outs < outsPerInning {
		batter := g.lineup[g.next]
		g.next = (g.next + 1) % len(g.lineup)

		outcome, runs := g.plateAppearance(batter)
		g.score += runs
		batter.AddRunsBattedIn(runs)

		inning = append(inning, models.PlateAppearance{
			Batter:  batter.Name,
			Outcome: outcome,
			RBI:     runs,
		})
	}

	g.outs = 0
	g.bases = models.BaseState{}
	return inning
}

// plateAppearance resolves one batter and returns the logged outcome and the
// runs it produced
func (g *Game) plateAppearance(batter *models.Player) (models.Outcome, int) {
	if g.shouldAttemptBunt(batter) {
		return g.processBunt(batter)
	}

	outcome, _ := batter.ResolvePlateAppearance(g.rng)

	switch outcome {
	case models.GroundOut:
		return g.processGroundOut(batter)
	case models.FlyOut:
		return g.processFlyOut(batter)
	}

	if outcome.Details().IsOut {
		g.outs++
		return outcome, 0
	}

	bases, runs := g.advanceRunners(batter, outcome)
	g.bases = bases
	return outcome, runs
}

// shouldAttemptBunt decides whether the batter lays one down instead of
// swinging
func (g *Game) shouldAttemptBunt(batter *models.Player) bool {
	if g.outs >= outsPerInning-1 {
		return false
	}
	if !g.bases.Occupied(models.First) && !g.bases.Occupied(models.Second) {
		return false
	}
	p := batter.OutProbability() * g.rules.BuntAggressiveness
	if p <= 0 {
		return false
	}
	return g.rng.Float64() < p
}

// processBunt handles a sacrifice attempt. A successful bunt moves every
// runner up exactly one base.
func (g *Game) processBunt(batter *models.Player) (models.Outcome, int) {
	g.outs++

	if g.rng.Float64() >= g.rules.BuntSuccessRate {
		batter.Record(models.BuntFail)
		return models.BuntFail, 0
	}

	batter.Record(models.SacrificeBunt)
	bases, runs := forceAdvance(g.bases)
	g.bases = bases
	return models.SacrificeBunt, runs
}

// processGroundOut turns a sampled ground_out into a double play, an
// advancing ground out, or a plain out
func (g *Game) processGroundOut(batter *models.Player) (models.Outcome, int) {
	if g.bases.Occupied(models.First) && g.outs < outsPerInning-1 &&
		g.rng.Float64() < g.rules.DoublePlayRate {
		g.outs += 2
		next := g.bases
		next[models.First] = nil
		g.bases = next
		batter.Record(models.DoublePlay)
		return models.DoublePlay, 0
	}

	if !g.bases.IsEmpty() && g.rng.Float64() < g.rules.GroundOutAdvanceRate {
		batter.Record(models.GroundOutAdvance)
		if g.outs+1 >= outsPerInning {
			// third out ends the inning before anyone can score
			g.outs++
			return models.GroundOutAdvance, 0
		}
		bases, runs := g.advanceRunners(batter, models.GroundOutAdvance)
		g.bases = bases
		g.outs++
		return models.GroundOutAdvance, runs
	}

	g.outs++
	return models.GroundOut, 0
}

// processFlyOut records the out and, when enabled, tags up a runner from third
func (g *Game) processFlyOut(batter *models.Player) (models.Outcome, int) {
	if g.rules.SacrificeFlyRate > 0 && g.bases.Occupied(models.Third) &&
		g.outs < outsPerInning-1 && g.rng.Float64() < g.rules.SacrificeFlyRate {
		g.outs++
		next := g.bases
		next[models.Third] = nil
		g.bases = next
		batter.Record(models.SacrificeFly)
		return models.SacrificeFly, 1
	}

	g.outs++
	return models.FlyOut, 0
}

// advanceRunners computes the base state after a hit, walk or advancing out.
// The returned state is built from scratch; g.bases is left untouched.
func (g *Game) advanceRunners(batter *models.Player, outcome models.Outcome) (models.BaseState, int) {
	switch outcome {
	case models.Walk:
		return processWalk(g.bases, batter)
	case models.Homerun:
		return processHomerun(g.bases)
	case models.Triple:
		return processTriple(g.bases, batter)
	case models.Double:
		return g.processDouble(batter)
	case models.GroundOutAdvance:
		return g.processSingle(nil, outcome)
	default:
		return g.processSingle(batter, outcome)
	}
}

// processWalk applies the force rule: a runner moves only when every base
// behind it is occupied
func processWalk(bases models.BaseState, batter *models.Player) (models.BaseState, int) {
	next := bases
	runs := 0

	if bases.Occupied(models.First) {
		if bases.Occupied(models.Second) {
			if bases.Occupied(models.Third) {
				runs++
			}
			next[models.Third] = bases[models.Second]
		}
		next[models.Second] = bases[models.First]
	}
	next[models.First] = batter

	return next, runs
}

func processHomerun(bases models.BaseState) (models.BaseState, int) {
	return models.BaseState{}, 1 + bases.Count()
}

func processTriple(bases models.BaseState, batter *models.Player) (models.BaseState, int) {
	var next models.BaseState
	next[models.Third] = batter
	return next, bases.Count()
}

func (g *Game) processDouble(batter *models.Player) (models.BaseState, int) {
	var next models.BaseState
	runs := 0

	if g.bases.Occupied(models.Third) {
		runs++
	}
	if g.bases.Occupied(models.Second) {
		runs++
	}
	if runner := g.bases.Runner(models.First); runner != nil {
		if g.ShouldAdvanceExtraBase(runner, models.First, models.Double) {
			runs++
		} else {
			next[models.Third] = runner
		}
	}
	next[models.Second] = batter

	return next, runs
}

// processSingle is the default advancement branch. A nil batter leaves first
// base open, as on a ground out that moves the runners.
func (g *Game) processSingle(batter *models.Player, outcome models.Outcome) (models.BaseState, int) {
	var next models.BaseState
	runs := 0

	if g.bases.Occupied(models.Third) {
		runs++
	}
	if runner := g.bases.Runner(models.Second); runner != nil {
		if g.ShouldAdvanceExtraBase(runner, models.Second, outcome) {
			runs++
		} else {
			next[models.Third] = runner
		}
	}
	if runner := g.bases.Runner(models.First); runner != nil {
		if !next.Occupied(models.Third) && g.ShouldAdvanceExtraBase(runner, models.First, outcome) {
			next[models.Third] = runner
		} else {
			next[models.Second] = runner
		}
	}
	next[models.First] = batter

	return next, runs
}

// forceAdvance moves every runner exactly one base; a runner on third scores
func forceAdvance(bases models.BaseState) (models.BaseState, int) {
	var next models.BaseState
	runs := 0

	if bases.Occupied(models.Third) {
		runs++
	}
	next[models.Third] = bases[models.Second]
	next[models.Second] = bases[models.First]

	return next, runs
}

// ShouldAdvanceExtraBase decides whether a runner takes an unforced extra
// base on a single or double
func (g *Game) ShouldAdvanceExtraBase(runner *models.Player, from models.Base, outcome models.Outcome) bool {
	return g.rng.Float64() < extraBaseProbability(runner.Speed, from, outcome, g.outs)
}

func extraBaseProbability(speed float64, from models.Base, outcome models.Outcome, outs int) float64 {
	base := 0.0
	switch {
	case outcome == models.Single && from == models.First:
		base = 0.1
	case outcome == models.Single && from == models.Second:
		base = 0.1
	case outcome == models.Double && from == models.First:
		base = 0.1
	}

	p := base + speed*0.02

	switch outs {
	case 0:
		p *= 0.9
	case 2:
		p *= 1.1
	}

	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// checkDistinct rejects nil entries and players listed twice; a runner can only
// stand on one base
func checkDistinct(players []*models.Player, what string) error {
	seen := make(map[*models.Player]int, len(players))
	for i, p := range players {
		if p == nil {
			return fmt.Errorf("%w: %s %d is empty", ErrInvalidLineup, what, i+1)
		}
		if j, dup := seen[p]; dup {
			return fmt.Errorf("%w: %s %d repeats %s from %s %d", ErrInvalidLineup, what, i+1, p.Name, what, j+1)
		}
		seen[p] = i
	}
	return nil
}
