package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/baseball-sim/lineup-sim/models"
)

// Run states reported by RunStatus
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Observer receives simulation measurements, e.g. for metrics export
type Observer interface {
	GameSimulated(score int)
	SeasonSimulated(games int, duration time.Duration)
	ExplorationFinished(status string, trials int, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) GameSimulated(int)                              {}
func (nopObserver) SeasonSimulated(int, time.Duration)             {}
func (nopObserver) ExplorationFinished(string, int, time.Duration) {}

// EngineConfig configures an Engine
type EngineConfig struct {
	Workers     int
	SeasonGames int
	Rules       models.Rules
	Seed        int64 // 0 seeds from the clock
	RunTTL      time.Duration
	Observer    Observer
}

// Engine runs games, seasons and asynchronous lineup explorations
type Engine struct {
	workers     int
	seasonGames int
	rules       models.Rules
	runTTL      time.Duration
	observer    Observer

	seed    int64
	streams atomic.Int64

	mu         sync.RWMutex
	activeRuns map[string]*RunStatus
	cancels    map[string]context.CancelFunc
}

// RunStatus tracks the progress of an exploration run
type RunStatus struct {
	RunID           string         `json:"run_id"`
	Status          string         `json:"status"`
	TotalTrials     int            `json:"total_trials"`
	CompletedTrials int            `json:"completed_trials"`
	ShuffleOnly     bool           `json:"shuffle_only"`
	StartTime       time.Time      `json:"start_time"`
	CompletedTime   *time.Time     `json:"completed_time,omitempty"`
	Error           string         `json:"error,omitempty"`
	Result          *ExploreResult `json:"-"`
}

// Progress returns the completed fraction of the run
func (rs RunStatus) Progress() float64 {
	if rs.TotalTrials == 0 {
		return 0
	}
	return float64(rs.CompletedTrials) / float64(rs.TotalTrials)
}

// NewEngine creates a new simulation engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SeasonGames < 1 {
		cfg.SeasonGames = DefaultSeasonGames
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 24 * time.Hour
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Rules == (models.Rules{}) {
		cfg.Rules = models.DefaultRules()
	}

	return &Engine{
		workers:     cfg.Workers,
		seasonGames: cfg.SeasonGames,
		rules:       cfg.Rules,
		runTTL:      cfg.RunTTL,
		observer:    cfg.Observer,
		seed:        cfg.Seed,
		activeRuns:  make(map[string]*RunStatus),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Rules returns the rule set the engine plays with
func (e *Engine) Rules() models.Rules {
	return e.rules
}

// newRNG hands out an independent random stream. Streams are derived from the
// engine seed so a fixed seed reproduces the same sequence of runs.
func (e *Engine) newRNG() *rand.Rand {
	return rand.New(rand.NewSource(e.seed + e.streams.Add(1)*7919))
}

// SimulateGame plays one game with the lineup and returns the result
func (e *Engine) SimulateGame(lineup []*models.Player, innings int) (models.GameResult, error) {
	game, err := NewGame(lineup, e.rules, e.newRNG())
	if err != nil {
		return models.GameResult{}, err
	}

	result := game.Play(innings)
	e.observer.GameSimulated(result.Score)
	return result, nil
}

// SimulateSeason plays a season with the lineup. A non-positive game count
// uses the engine default.
func (e *Engine) SimulateSeason(lineup []*models.Player, games int) (SeasonResult, error) {
	if games <= 0 {
		games = e.seasonGames
	}

	start := time.Now()
	result, err := SimulateSeason(e.newRNG(), e.rules, games, lineup)
	if err != nil {
		return SeasonResult{}, err
	}
	e.observer.SeasonSimulated(games, time.Since(start))
	return result, nil
}

// StartExploration validates the pool and launches a search in the
// background, returning the run ID to poll
func (e *Engine) StartExploration(pool []*models.Player, trials int, shuffleOnly bool) (string, error) {
	if trials < 1 {
		return "", fmt.Errorf("number of trials must be positive, got %d", trials)
	}
	if err := validatePool(pool, shuffleOnly); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.activeRuns[runID] = &RunStatus{
		RunID:       runID,
		Status:      StatusRunning,
		TotalTrials: trials,
		ShuffleOnly: shuffleOnly,
		StartTime:   time.Now(),
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	go e.RunExploration(ctx, runID, pool, trials, shuffleOnly)

	return runID, nil
}

// RunExploration executes a registered run, splitting trials across the
// worker pool. Every worker plays on its own clones of the pool so no
// statistics are shared between concurrent seasons.
func (e *Engine) RunExploration(ctx context.Context, runID string, pool []*models.Player, trials int, shuffleOnly bool) {
	start := time.Now()
	if trials < 1 {
		e.finishRun(runID, StatusFailed, ExploreResult{}, fmt.Errorf("number of trials must be positive, got %d", trials))
		return
	}
	log.Info().Str("run_id", runID).Int("trials", trials).Int("workers", e.workers).
		Bool("shuffle_only", shuffleOnly).Msg("exploration started")

	workers := e.workers
	if workers > trials {
		workers = trials
	}
	trialsPerWorker := trials / workers
	remainder := trials % workers

	results := make([]ExploreResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		workerTrials := trialsPerWorker
		if i < remainder {
			workerTrials++
		}

		wg.Add(1)
		go func(workerID, count int) {
			defer wg.Done()

			rng := e.newRNG()
			results[workerID], errs[workerID] = FindBestAndWorstLineups(ctx, rng, ExploreOptions{
				NumTrials:   count,
				ShuffleOnly: shuffleOnly,
				SeasonGames: e.seasonGames,
				Rules:       e.rules,
				Progress: func(int, int) {
					e.updateProgress(runID)
				},
			}, clonePool(pool))
		}(i, workerTrials)
	}
	wg.Wait()

	var tracker lineupTracker
	var runErr error
	for i := range results {
		if errs[i] != nil {
			runErr = errs[i]
			break
		}
		tracker.merge(results[i])
	}

	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			status = StatusCancelled
		}
		log.Error().Err(runErr).Str("run_id", runID).Str("status", status).Msg("exploration stopped")
	} else {
		log.Info().Str("run_id", runID).Dur("duration", time.Since(start)).
			Float64("best_avg", tracker.result.Best.AverageRuns).
			Float64("worst_avg", tracker.result.Worst.AverageRuns).
			Msg("exploration completed")
	}

	e.finishRun(runID, status, tracker.result, runErr)
	e.observer.ExplorationFinished(status, trials, time.Since(start))
}

func clonePool(pool []*models.Player) []*models.Player {
	clones := make([]*models.Player, len(pool))
	for i, p := range pool {
		clones[i] = p.Clone()
	}
	return clones
}

// updateProgress bumps the completed trial count
func (e *Engine) updateProgress(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if status, exists := e.activeRuns[runID]; exists {
		status.CompletedTrials++
	}
}

func (e *Engine) finishRun(runID, state string, result ExploreResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}

	status, exists := e.activeRuns[runID]
	if !exists {
		return
	}

	completedTime := time.Now()
	status.CompletedTime = &completedTime
	status.Status = state

	if err != nil {
		status.Error = err.Error()
		return
	}
	status.CompletedTrials = status.TotalTrials
	status.Result = &result
}

// CancelRun stops a running exploration. It reports false for unknown or
// finished runs.
func (e *Engine) CancelRun(runID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// GetRunStatus returns a snapshot of a run's status
func (e *Engine) GetRunStatus(runID string) (RunStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status, exists := e.activeRuns[runID]
	if !exists {
		return RunStatus{}, false
	}
	return *status, true
}

// GetRunResult returns the result of a completed run. The boolean is false if
// the run does not exist; a nil result means it has not completed.
func (e *Engine) GetRunResult(runID string) (*ExploreResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status, exists := e.activeRuns[runID]
	if !exists {
		return nil, false
	}
	return status.Result, true
}

// CleanupOldRuns removes runs that finished more than the configured TTL ago
func (e *Engine) CleanupOldRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-e.runTTL)
	removed := 0

	for runID, status := range e.activeRuns {
		if status.CompletedTime != nil && status.CompletedTime.Before(cutoff) {
			delete(e.activeRuns, runID)
			removed++
		}
	}
	return removed
}

func (e *Engine) getActiveRunsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.activeRuns)
}

// StartPerformanceMonitoring periodically drops old runs until ctx is done
func (e *Engine) StartPerformanceMonitoring(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := e.CleanupOldRuns()
				log.Debug().Int("removed", removed).Int("active_runs", e.getActiveRunsCount()).
					Msg("simulation engine cleanup")
			}
		}
	}()
}
