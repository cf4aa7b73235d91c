package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseball-sim/lineup-sim/models"
	"github.com/baseball-sim/lineup-sim/roster"
	"github.com/baseball-sim/lineup-sim/simulation"
)

const rosterCSV = `Player,1B_ratio,2B_ratio,3B_ratio,HR_ratio,BB+HBP_ratio,SO_ratio,Ground_Out_ratio,Fly_Out_ratio,Speed
Leadoff,0.20,0.05,0.01,0.02,0.10,0.15,0.27,0.20,4
Slugger,0.12,0.06,0.00,0.07,0.12,0.25,0.18,0.20,-1
`

const defaultLineupsCSV = `Team,Position,Player
SEA,DH,S11
SEA,C,S2
SEA,SS,S5
SEA,1B,S3
NYY,C,Leadoff
`

// teamCSV builds a roster of n average hitters named S1..Sn
func teamCSV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("Player,1B_ratio,2B_ratio,3B_ratio,HR_ratio,BB+HBP_ratio,SO_ratio,Ground_Out_ratio,Fly_Out_ratio,Speed\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&buf, "S%d,0.20,0.05,0.01,0.02,0.10,0.15,0.27,0.20,0\n", i)
	}
	return buf.Bytes()
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, db pinger) *Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2023_NYY.csv"), []byte(rosterCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2023_SEA.csv"), teamCSV(11), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024_SEA.csv"), teamCSV(11), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default_lineups_2023.csv"), []byte(defaultLineupsCSV), 0o644))

	cfg := &Config{
		Port:           "0",
		Workers:        2,
		SeasonGames:    2,
		MaxTrials:      50,
		AllowedOrigins: []string{"http://localhost:3000"},
		Rules:          models.DefaultRules(),
		Roster:         RosterConfig{Source: SourceCSV, CSVDir: dir},
	}
	metrics := NewMetrics()
	engine := simulation.NewEngine(simulation.EngineConfig{
		Workers:     cfg.Workers,
		SeasonGames: cfg.SeasonGames,
		Rules:       cfg.Rules,
		Seed:        42,
		Observer:    metrics,
	})
	source := roster.NewCachedSource(roster.CSVSource{Dir: dir}, time.Minute, metrics)
	return NewServer(cfg, engine, source, db, metrics)
}

func strikeoutRecords(n int) []roster.Record {
	records := make([]roster.Record, n)
	for i := range records {
		records[i] = roster.Record{
			Name:          fmt.Sprintf("K%d", i+1),
			Probabilities: []float64{0, 0, 0, 0, 0, 1, 0, 0},
		}
	}
	return records
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func statNames(lines []models.StatLine) []string {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	return names
}

// startExploration posts the request and waits for the run's result
func startExploration(t *testing.T, s *Server, req ExploreRequest) simulation.ExploreResult {
	t.Helper()

	rr := doRequest(t, s, "POST", "/explore", req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var started ExploreResponse
	decodeBody(t, rr, &started)

	var result simulation.ExploreResult
	require.Eventually(t, func() bool {
		rr := doRequest(t, s, "GET", "/explore/"+started.RunID+"/result", nil)
		if rr.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(rr.Body.Bytes(), &result) == nil
	}, 10*time.Second, 10*time.Millisecond)
	return result
}

func TestHealthHandler(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var health map[string]interface{}
	decodeBody(t, rr, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.NotContains(t, health, "database")

	rr = doRequest(t, newTestServer(t, fakeDB{err: errors.New("down")}), "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	decodeBody(t, rr, &health)
	assert.Equal(t, "disconnected", health["database"])
}

func TestSimulateGameHandler(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doRequest(t, s, "POST", "/simulate/game", GameRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Innings:         2,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp GameResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, 0, resp.Score)
	assert.Equal(t, []int{0, 0}, resp.LineScore)
	require.Len(t, resp.Innings, 2)
	assert.Len(t, resp.Innings[0], 3)
	assert.Equal(t, models.Strikeout, resp.Innings[0][0].Outcome)
	require.Len(t, resp.Stats, 9)
	assert.Equal(t, 1, resp.Stats[0].Stats[models.StatStrikeouts.String()])
}

func TestSimulateGameWithoutDH(t *testing.T) {
	s := newTestServer(t, nil)
	noDH := false

	rr := doRequest(t, s, "POST", "/simulate/game", GameRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Innings:         1,
		UseDH:           &noDH,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp GameResponse
	decodeBody(t, rr, &resp)
	require.Len(t, resp.Stats, 9)
	assert.Equal(t, roster.PitcherName, resp.Stats[8].Name)
}

func TestSimulateGameFromRoster(t *testing.T) {
	s := newTestServer(t, nil)
	names := []string{"S9", "S8", "S7", "S6", "S5", "S4", "S3", "S2", "S1"}

	rr := doRequest(t, s, "POST", "/simulate/game", GameRequest{
		PlayerSelection: PlayerSelection{Team: "SEA", Season: 2023, Players: names},
		Innings:         1,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp GameResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, names, statNames(resp.Stats))
}

func TestSimulateGameDefaultLineup(t *testing.T) {
	s := newTestServer(t, nil)

	// listed starters by position, then the rest of the roster in order
	rr := doRequest(t, s, "POST", "/simulate/game", GameRequest{
		PlayerSelection: PlayerSelection{Team: "SEA", Season: 2023},
		Innings:         1,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp GameResponse
	decodeBody(t, rr, &resp)
	want := []string{"S2", "S3", "S5", "S11", "S1", "S4", "S6", "S7", "S8"}
	assert.Equal(t, want, statNames(resp.Stats))

	noDH := false
	rr = doRequest(t, s, "POST", "/simulate/game", GameRequest{
		PlayerSelection: PlayerSelection{Team: "SEA", Season: 2023},
		Innings:         1,
		UseDH:           &noDH,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeBody(t, rr, &resp)
	assert.Equal(t, append(want[:8:8], roster.PitcherName), statNames(resp.Stats))

	// no default lineup file for the season
	rr = doRequest(t, s, "POST", "/simulate/season", SeasonRequest{
		PlayerSelection: PlayerSelection{Team: "SEA", Season: 2024},
		Games:           1,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var season simulation.SeasonResult
	decodeBody(t, rr, &season)
	assert.Equal(t, []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8", "S9"}, statNames(season.Stats))
}

func TestSimulateRejectsLineupSize(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		sel  PlayerSelection
	}{
		{"two inline", PlayerSelection{Lineup: strikeoutRecords(2)}},
		{"ten inline", PlayerSelection{Lineup: strikeoutRecords(10)}},
		{"two named", PlayerSelection{Team: "NYY", Season: 2023, Players: []string{"Slugger", "Leadoff"}}},
		{"roster too small", PlayerSelection{Team: "NYY", Season: 2023}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "POST", "/simulate/game", GameRequest{PlayerSelection: tt.sel, Innings: 1})
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), "invalid lineup")

			rr = doRequest(t, s, "POST", "/simulate/season", SeasonRequest{PlayerSelection: tt.sel, Games: 1})
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestSimulateGameBadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"unknown field", `{"lineup_size": 9}`, http.StatusBadRequest},
		{"empty", GameRequest{}, http.StatusBadRequest},
		{"negative innings", GameRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)}, Innings: -1}, http.StatusBadRequest},
		{"bad probabilities", GameRequest{PlayerSelection: PlayerSelection{Lineup: []roster.Record{{Name: "X", Probabilities: []float64{1, 1}}}}}, http.StatusBadRequest},
		{"lineup and team", GameRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9), Team: "NYY", Season: 2023}}, http.StatusBadRequest},
		{"bad season", GameRequest{PlayerSelection: PlayerSelection{Team: "NYY", Season: 1800}}, http.StatusBadRequest},
		{"bad team", GameRequest{PlayerSelection: PlayerSelection{Team: "N.Y", Season: 2023}}, http.StatusBadRequest},
		{"unknown team", GameRequest{PlayerSelection: PlayerSelection{Team: "BOS", Season: 2023}}, http.StatusNotFound},
		{"unknown player", GameRequest{PlayerSelection: PlayerSelection{Team: "NYY", Season: 2023, Players: []string{"Nobody"}}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "POST", "/simulate/game", tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())

			var apiErr APIError
			decodeBody(t, rr, &apiErr)
			assert.NotEmpty(t, apiErr.Error)
		})
	}
}

func TestSimulateSeasonHandler(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doRequest(t, s, "POST", "/simulate/season", SeasonRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Games:           3,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp simulation.SeasonResult
	decodeBody(t, rr, &resp)
	assert.Equal(t, 3, resp.Games)
	assert.Equal(t, 0, resp.TotalRuns)
	require.Len(t, resp.Stats, 9)
	// 81 outs over 9 batters
	assert.Equal(t, 9, resp.Stats[0].Stats[models.StatStrikeouts.String()])

	rr = doRequest(t, s, "POST", "/simulate/season", SeasonRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &resp)
	assert.Equal(t, 2, resp.Games)

	rr = doRequest(t, s, "POST", "/simulate/season", SeasonRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Games:           -1,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExploreLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doRequest(t, s, "POST", "/explore", ExploreRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Trials:          3,
		ShuffleOnly:     true,
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var started ExploreResponse
	decodeBody(t, rr, &started)
	require.NotEmpty(t, started.RunID)
	assert.Equal(t, "/explore/"+started.RunID+"/status", rr.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rr := doRequest(t, s, "GET", "/explore/"+started.RunID+"/status", nil)
		var status ExploreStatus
		if json.Unmarshal(rr.Body.Bytes(), &status) != nil {
			return false
		}
		return status.Status == simulation.StatusCompleted
	}, 10*time.Second, 10*time.Millisecond)

	rr = doRequest(t, s, "GET", "/explore/"+started.RunID+"/result", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result simulation.ExploreResult
	decodeBody(t, rr, &result)
	assert.Equal(t, 3, result.Trials)
	assert.Len(t, result.Best.Lineup, simulation.LineupSize)
	assert.Zero(t, result.Best.AverageRuns)

	rr = doRequest(t, s, "DELETE", "/explore/"+started.RunID, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestExploreBadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		req  ExploreRequest
	}{
		{"zero trials", ExploreRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)}}},
		{"too many trials", ExploreRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)}, Trials: 51}},
		{"small pool", ExploreRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(8)}, Trials: 1}},
		{"shuffle needs nine", ExploreRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(10)}, Trials: 1, ShuffleOnly: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "POST", "/explore", tt.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestExploreWithoutDH(t *testing.T) {
	s := newTestServer(t, nil)
	noDH := false

	// eight batters plus the pitcher fill the only possible lineup
	result := startExploration(t, s, ExploreRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(8)},
		Trials:          2,
		UseDH:           &noDH,
	})
	assert.Contains(t, result.Best.Lineup, roster.PitcherName)
	assert.Contains(t, result.Worst.Lineup, roster.PitcherName)

	result = startExploration(t, s, ExploreRequest{
		PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)},
		Trials:          2,
		ShuffleOnly:     true,
		UseDH:           &noDH,
	})
	assert.Contains(t, result.Best.Lineup, roster.PitcherName)
	assert.NotContains(t, result.Best.Lineup, "K9")

	result = startExploration(t, s, ExploreRequest{
		PlayerSelection: PlayerSelection{Team: "SEA", Season: 2023},
		Trials:          1,
		ShuffleOnly:     true,
	})
	assert.ElementsMatch(t, []string{"S2", "S3", "S5", "S11", "S1", "S4", "S6", "S7", "S8"}, result.Best.Lineup)
}

func TestExploreUnknownRun(t *testing.T) {
	s := newTestServer(t, nil)

	for _, req := range []struct{ method, path string }{
		{"GET", "/explore/missing/status"},
		{"GET", "/explore/missing/result"},
		{"DELETE", "/explore/missing"},
	} {
		rr := doRequest(t, s, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, req.path)
	}
}

func TestRosterHandler(t *testing.T) {
	s := newTestServer(t, nil)

	rr := doRequest(t, s, "GET", "/rosters/NYY/2023", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Team    string          `json:"team"`
		Season  int             `json:"season"`
		Players []roster.Record `json:"players"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, "NYY", resp.Team)
	assert.Equal(t, 2023, resp.Season)
	require.Len(t, resp.Players, 2)
	assert.Equal(t, "Leadoff", resp.Players[0].Name)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, "GET", "/rosters/BOS/2023", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "GET", "/rosters/NYY/1700", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "GET", "/rosters/N.Y/2023", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, s, "GET", "/rosters/NYY/latest", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	doRequest(t, s, "GET", "/rosters/NYY/2023", nil)
	doRequest(t, s, "GET", "/rosters/NYY/2023", nil)
	doRequest(t, s, "POST", "/simulate/game", GameRequest{PlayerSelection: PlayerSelection{Lineup: strikeoutRecords(9)}, Innings: 1})

	rr := doRequest(t, s, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `lineup_sim_http_requests_total{code="200",method="GET",route="/rosters/{team}/{season:[0-9]+}"} 2`)
	assert.Contains(t, body, `lineup_sim_roster_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `lineup_sim_roster_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, body, "lineup_sim_game_runs_count 1")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest("OPTIONS", "/simulate/game", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
