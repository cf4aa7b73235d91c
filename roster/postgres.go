package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Querier is the subset of a pgx pool the Postgres source needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DBConfig holds connection settings for the stats database
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// URL builds the connection string
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Connect opens and pings a connection pool
func Connect(ctx context.Context, cfg DBConfig) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	if cfg.MaxConns > 0 {
		dbConfig.MaxConns = cfg.MaxConns
		dbConfig.MinConns = cfg.MaxConns / 4
	}
	dbConfig.MaxConnLifetime = time.Hour
	dbConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const battingRosterQuery = `
	SELECT p.first_name, p.last_name, a.aggregated_stats
	FROM players p
	JOIN teams t ON p.team_id = t.id
	JOIN player_season_aggregates a ON a.player_id = p.id
	WHERE t.abbreviation = $1 AND a.season = $2 AND a.stats_type = 'batting'
	ORDER BY p.last_name, p.first_name
`

// PostgresSource derives records from season batting aggregates
type PostgresSource struct {
	db Querier
}

// NewPostgresSource creates a source backed by db
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load returns a record for every batter on the team with enough plate
// appearances. Players below the threshold are skipped.
func (s *PostgresSource) Load(ctx context.Context, team string, season int) ([]Record, error) {
	if err := ValidateTeam(team); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, battingRosterQuery, team, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query batting stats: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var firstName, lastName string
		var statsJSON []byte

		if err := rows.Scan(&firstName, &lastName, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan batting stats: %w", err)
		}

		name := firstName + " " + lastName
		var stats map[string]interface{}
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			log.Warn().Err(err).Str("player", name).Msg("skipping unreadable batting aggregate")
			continue
		}

		record, err := battingLineFromStats(name, stats).Record()
		if err != nil {
			log.Debug().Err(err).Str("player", name).Msg("skipping batter")
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batting stats: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, team, season)
	}
	return records, nil
}
