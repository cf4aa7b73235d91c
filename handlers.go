package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/baseball-sim/lineup-sim/models"
	"github.com/baseball-sim/lineup-sim/roster"
	"github.com/baseball-sim/lineup-sim/simulation"
)

const (
	maxRequestBytes = 1 << 20
	maxSeasonGames  = 10000
	rosterTimeout   = 10 * time.Second
)

// APIError is the body of every error response
type APIError struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PlayerSelection names the players of a request, either inline or by team and
// season from the roster source. With Players set only those are used, in
// that order.
type PlayerSelection struct {
	Lineup  []roster.Record `json:"lineup,omitempty"`
	Team    string          `json:"team,omitempty"`
	Season  int             `json:"season,omitempty"`
	Players []string        `json:"players,omitempty"`
}

type GameRequest struct {
	PlayerSelection
	Innings int   `json:"innings,omitempty"`
	UseDH   *bool `json:"use_dh,omitempty"`
}

type GameResponse struct {
	Score     int                `json:"score"`
	LineScore []int              `json:"line_score"`
	Innings   []models.InningLog `json:"innings"`
	Stats     []models.StatLine  `json:"stats"`
}

type SeasonRequest struct {
	PlayerSelection
	Games int   `json:"games,omitempty"`
	UseDH *bool `json:"use_dh,omitempty"`
}

type ExploreRequest struct {
	PlayerSelection
	Trials      int   `json:"trials"`
	ShuffleOnly bool  `json:"shuffle_only"`
	UseDH       *bool `json:"use_dh,omitempty"`
}

type ExploreResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ExploreStatus struct {
	simulation.RunStatus
	Progress float64 `json:"progress"`
}

// records resolves the selection into roster records
func (s *Server) records(ctx context.Context, sel PlayerSelection) ([]roster.Record, error) {
	if len(sel.Lineup) > 0 {
		if sel.Team != "" {
			return nil, validationError{"give either lineup or team, not both"}
		}
		return sel.Lineup, nil
	}
	if sel.Team == "" {
		return nil, validationError{"lineup or team is required"}
	}
	if err := validateSeasonParam(sel.Season); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rosterTimeout)
	defer cancel()

	records, err := s.source.Load(ctx, sel.Team, sel.Season)
	if err != nil {
		return nil, err
	}
	if len(sel.Players) == 0 {
		return records, nil
	}
	return roster.Select(records, sel.Players)
}

// startingNine resolves a team selection without named players to the team's
// default lineup, filled up from the roster when it has fewer than nine
func (s *Server) startingNine(ctx context.Context, sel PlayerSelection, records []roster.Record) ([]roster.Record, error) {
	if sel.Team == "" || len(sel.Players) > 0 {
		return records, nil
	}

	var starters []string
	if s.defaults != nil {
		names, err := s.defaults.DefaultLineup(ctx, sel.Team, sel.Season)
		switch {
		case err == nil:
			starters = names
		case !errors.Is(err, roster.ErrNotFound):
			return nil, err
		default:
			log.Debug().Str("team", sel.Team).Int("season", sel.Season).
				Msg("no default lineup, using roster order")
		}
	}
	return roster.Select(records, roster.FillLineup(starters, records))
}

func useDH(flag *bool) bool {
	return flag == nil || *flag
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	health := map[string]interface{}{
		"status":        "healthy",
		"time":          time.Now().UTC(),
		"workers":       s.config.Workers,
		"roster_source": s.config.Roster.Source,
	}

	if s.db != nil {
		health["database"] = "connected"

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.Ping(ctx); err != nil {
			health["database"] = "disconnected"
			health["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSONStatus(w, code, health)
}

func (s *Server) simulateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Innings < 0 {
		writeError(w, "innings must not be negative", http.StatusBadRequest)
		return
	}

	lineup, ok := s.lineup(w, r, req.PlayerSelection, useDH(req.UseDH))
	if !ok {
		return
	}

	result, err := s.engine.SimulateGame(lineup, req.Innings)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, GameResponse{
		Score:     result.Score,
		LineScore: result.LineScore(),
		Innings:   result.Innings,
		Stats:     models.StatTable(lineup),
	})
}

func (s *Server) simulateSeasonHandler(w http.ResponseWriter, r *http.Request) {
	var req SeasonRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Games < 0 || req.Games > maxSeasonGames {
		writeError(w, fmt.Sprintf("games must be between 0 and %d", maxSeasonGames), http.StatusBadRequest)
		return
	}

	lineup, ok := s.lineup(w, r, req.PlayerSelection, useDH(req.UseDH))
	if !ok {
		return
	}

	result, err := s.engine.SimulateSeason(lineup, req.Games)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result)
}

// lineup resolves and builds players, writing the error response on failure
func (s *Server) lineup(w http.ResponseWriter, r *http.Request, sel PlayerSelection, dh bool) ([]*models.Player, bool) {
	records, err := s.records(r.Context(), sel)
	if err == nil {
		records, err = s.startingNine(r.Context(), sel, records)
	}
	if err != nil {
		writeRosterError(w, err)
		return nil, false
	}

	players, err := roster.Players(roster.ApplyDHRule(records, dh))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return players, true
}

func (s *Server) exploreHandler(w http.ResponseWriter, r *http.Request) {
	var req ExploreRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Trials < 1 || req.Trials > s.config.MaxTrials {
		writeError(w, fmt.Sprintf("trials must be between 1 and %d", s.config.MaxTrials), http.StatusBadRequest)
		return
	}

	records, err := s.records(r.Context(), req.PlayerSelection)
	if err == nil && req.ShuffleOnly {
		records, err = s.startingNine(r.Context(), req.PlayerSelection, records)
	}
	if err != nil {
		writeRosterError(w, err)
		return
	}
	pool, err := roster.Players(explorePool(records, useDH(req.UseDH), req.ShuffleOnly))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.engine.StartExploration(pool, req.Trials, req.ShuffleOnly)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Location", "/explore/"+runID+"/status")
	writeJSONStatus(w, http.StatusAccepted, ExploreResponse{
		RunID:     runID,
		Status:    simulation.StatusRunning,
		Message:   fmt.Sprintf("Exploration started with %d trials", req.Trials),
		CreatedAt: time.Now().UTC(),
	})
}

// explorePool adds the pitcher when the DH rule is off. A shuffle-only pool
// already is the lineup, so the pitcher takes the ninth slot instead.
func explorePool(records []roster.Record, dh, shuffleOnly bool) []roster.Record {
	if shuffleOnly {
		return roster.ApplyDHRule(records, dh)
	}
	pool := make([]roster.Record, len(records), len(records)+1)
	copy(pool, records)
	if !dh {
		pool = append(pool, roster.PitcherRecord())
	}
	return pool
}

func (s *Server) exploreStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, exists := s.engine.GetRunStatus(runID)
	if !exists {
		writeError(w, "Exploration not found", http.StatusNotFound)
		return
	}
	writeJSON(w, ExploreStatus{RunStatus: status, Progress: status.Progress()})
}

func (s *Server) exploreResultHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, exists := s.engine.GetRunStatus(runID)
	if !exists {
		writeError(w, "Exploration not found", http.StatusNotFound)
		return
	}

	switch status.Status {
	case simulation.StatusCompleted:
		writeJSON(w, status.Result)
	case simulation.StatusRunning:
		writeJSONStatus(w, http.StatusAccepted, ExploreStatus{RunStatus: status, Progress: status.Progress()})
	default:
		writeErrorWithDetails(w, "Exploration did not complete", status.Status,
			map[string]interface{}{"error": status.Error}, http.StatusConflict)
	}
}

func (s *Server) cancelExploreHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, exists := s.engine.GetRunStatus(runID)
	if !exists {
		writeError(w, "Exploration not found", http.StatusNotFound)
		return
	}
	if !s.engine.CancelRun(runID) {
		writeError(w, "Exploration already "+status.Status, http.StatusConflict)
		return
	}

	log.Info().Str("run_id", runID).Msg("exploration cancel requested")
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

func (s *Server) rosterHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	season, err := strconv.Atoi(vars["season"])
	if err != nil {
		writeError(w, "invalid season", http.StatusBadRequest)
		return
	}

	records, err := s.records(r.Context(), PlayerSelection{Team: vars["team"], Season: season})
	if err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"team":    vars["team"],
		"season":  season,
		"players": records,
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeRosterError(w http.ResponseWriter, err error) {
	switch {
	case isValidationError(err), errors.Is(err, roster.ErrInvalidTeam):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, roster.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, "roster source timed out", http.StatusGatewayTimeout)
	case errors.Is(err, roster.ErrMalformedRecord):
		log.Error().Err(err).Msg("roster source returned bad data")
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error().Err(err).Msg("roster lookup failed")
		writeError(w, "roster lookup failed", http.StatusInternalServerError)
	}
}

// validationError marks request problems detected before touching a source
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func isValidationError(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// validateSeasonParam validates season parameter
func validateSeasonParam(season int) error {
	currentYear := time.Now().Year()
	if season < 1876 || season > currentYear+1 {
		return validationError{fmt.Sprintf("invalid season: must be between 1876 and %d", currentYear+1)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("error encoding JSON")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, APIError{Error: message})
}

func writeErrorWithDetails(w http.ResponseWriter, message, code string, details map[string]interface{}, statusCode int) {
	writeJSONStatus(w, statusCode, APIError{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
