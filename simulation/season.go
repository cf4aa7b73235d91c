package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/baseball-sim/lineup-sim/models"
)

const (
	// DefaultSeasonGames is the length of a regular season
	DefaultSeasonGames = 143
	// LineupSize is the number of batters in a batting order
	LineupSize = 9
)

// ErrInvalidLineup is returned when a lineup or player pool cannot be used
var ErrInvalidLineup = errors.New("invalid lineup")

// SeasonResult holds the totals of one simulated season
type SeasonResult struct {
	Games       int               `json:"games"`
	TotalRuns   int               `json:"total_runs"`
	AverageRuns float64           `json:"average_runs"`
	Stats       []models.StatLine `json:"stats"`
}

// SimulateSeason resets the players' stats once and plays numGames games with
// the same players so their statistics accumulate over the season
func SimulateSeason(rng models.RNG, rules models.Rules, numGames int, players []*models.Player) (SeasonResult, error) {
	if numGames < 0 {
		return SeasonResult{}, fmt.Errorf("number of games must not be negative, got %d", numGames)
	}

	game, err := NewGame(players, rules, rng)
	if err != nil {
		return SeasonResult{}, err
	}

	for _, p := range players {
		p.ResetStats()
	}

	total := 0
	for i := 0; i < numGames; i++ {
		total += game.Play(rules.Innings).Score
	}

	result := SeasonResult{
		Games:     numGames,
		TotalRuns: total,
		Stats:     models.StatTable(players),
	}
	if numGames > 0 {
		result.AverageRuns = float64(total) / float64(numGames)
	}
	return result, nil
}

// GenerateRandomLineup builds a batting order from a pool. With shuffleOnly
// the pool must hold exactly LineupSize players and only the order is
// randomized; otherwise LineupSize players are drawn without replacement and
// then ordered randomly. The pool itself is never reordered.
func GenerateRandomLineup(rng models.RNG, pool []*models.Player, shuffleOnly bool) ([]*models.Player, error) {
	if err := validatePool(pool, shuffleOnly); err != nil {
		return nil, err
	}

	selected := make([]*models.Player, len(pool))
	copy(selected, pool)

	if !shuffleOnly {
		// partial Fisher-Yates: the first LineupSize slots become a uniform sample
		for i := 0; i < LineupSize; i++ {
			j := i + rng.Intn(len(selected)-i)
			selected[i], selected[j] = selected[j], selected[i]
		}
		selected = selected[:LineupSize]
	}

	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected, nil
}

func validatePool(pool []*models.Player, shuffleOnly bool) error {
	if shuffleOnly && len(pool) != LineupSize {
		return fmt.Errorf("%w: shuffle-only exploration needs exactly %d players, got %d",
			ErrInvalidLineup, LineupSize, len(pool))
	}
	if len(pool) < LineupSize {
		return fmt.Errorf("%w: need at least %d players, got %d", ErrInvalidLineup, LineupSize, len(pool))
	}
	return checkDistinct(pool, "pool entry")
}

// SeasonFunc simulates one season for a lineup
type SeasonFunc func(lineup []*models.Player) (SeasonResult, error)

// ExploreOptions configures a best/worst lineup search
type ExploreOptions struct {
	NumTrials   int
	ShuffleOnly bool
	SeasonGames int          // DefaultSeasonGames when zero
	Rules       models.Rules // used by the default season function
	Season      SeasonFunc   // overrides SimulateSeason, mainly for tests
	Progress    func(done, total int)
}

// LineupSummary describes one evaluated batting order
type LineupSummary struct {
	Trial       int               `json:"trial"`
	Lineup      []string          `json:"lineup"`
	TotalRuns   int               `json:"total_runs"`
	AverageRuns float64           `json:"average_runs"`
	Stats       []models.StatLine `json:"stats"`
}

// ExploreResult holds the best and worst lineups of a search
type ExploreResult struct {
	Trials int           `json:"trials"`
	Best   LineupSummary `json:"best"`
	Worst  LineupSummary `json:"worst"`
}

// FindBestAndWorstLineups evaluates NumTrials random lineups by simulating a
// season for each, keeping the highest and lowest average runs per game. Ties
// keep the lineup found first. Cancelling ctx aborts the search without a
// partial result.
func FindBestAndWorstLineups(ctx context.Context, rng models.RNG, opts ExploreOptions, pool []*models.Player) (ExploreResult, error) {
	if opts.NumTrials < 1 {
		return ExploreResult{}, fmt.Errorf("number of trials must be positive, got %d", opts.NumTrials)
	}
	if err := validatePool(pool, opts.ShuffleOnly); err != nil {
		return ExploreResult{}, err
	}

	season := opts.Season
	if season == nil {
		games := opts.SeasonGames
		if games <= 0 {
			games = DefaultSeasonGames
		}
		rules := opts.Rules
		season = func(lineup []*models.Player) (SeasonResult, error) {
			return SimulateSeason(rng, rules, games, lineup)
		}
	}

	var tracker lineupTracker
	for i := 0; i < opts.NumTrials; i++ {
		if err := ctx.Err(); err != nil {
			return ExploreResult{}, err
		}

		lineup, err := GenerateRandomLineup(rng, pool, opts.ShuffleOnly)
		if err != nil {
			return ExploreResult{}, err
		}

		played, err := season(lineup)
		if err != nil {
			return ExploreResult{}, fmt.Errorf("trial %d: %w", i+1, err)
		}

		summary := summarize(lineup, played)
		summary.Trial = i + 1
		tracker.observe(summary)
		tracker.result.Trials++

		if opts.Progress != nil {
			opts.Progress(i+1, opts.NumTrials)
		}
	}

	return tracker.result, nil
}

func summarize(lineup []*models.Player, season SeasonResult) LineupSummary {
	names := make([]string, len(lineup))
	for i, p := range lineup {
		names[i] = p.Name
	}
	return LineupSummary{
		Lineup:      names,
		TotalRuns:   season.TotalRuns,
		AverageRuns: season.AverageRuns,
		Stats:       season.Stats,
	}
}

// lineupTracker keeps the best and worst summaries seen so far
type lineupTracker struct {
	result ExploreResult
	seen   bool
}

func (t *lineupTracker) observe(s LineupSummary) {
	if !t.seen || s.AverageRuns > t.result.Best.AverageRuns {
		t.result.Best = s
	}
	if !t.seen || s.AverageRuns < t.result.Worst.AverageRuns {
		t.result.Worst = s
	}
	t.seen = true
}

// merge folds another search's result in as if its trials ran afterwards,
// renumbering its trials to follow the ones already merged
func (t *lineupTracker) merge(other ExploreResult) {
	if other.Trials == 0 {
		return
	}
	best, worst := other.Best, other.Worst
	best.Trial += t.result.Trials
	worst.Trial += t.result.Trials
	t.observe(best)
	t.observe(worst)
	t.result.Trials += other.Trials
}
