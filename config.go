package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/baseball-sim/lineup-sim/models"
	"github.com/baseball-sim/lineup-sim/roster"
)

// Roster source kinds
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

type Config struct {
	Port        string        `mapstructure:"port"`
	Workers     int           `mapstructure:"workers"`
	SeasonGames int           `mapstructure:"season_games"`
	MaxTrials   int           `mapstructure:"max_trials"`
	Seed        int64         `mapstructure:"seed"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	RunTTL      time.Duration `mapstructure:"run_ttl"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Rules  models.Rules    `mapstructure:"rules"`
	Roster RosterConfig    `mapstructure:"roster"`
	DB     roster.DBConfig `mapstructure:"db"`
	Cache  CacheConfig     `mapstructure:"cache"`
}

type RosterConfig struct {
	Source string `mapstructure:"source"`
	CSVDir string `mapstructure:"csv_dir"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	rules := models.DefaultRules()

	v.SetDefault("port", "8081")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("season_games", 143)
	v.SetDefault("max_trials", 100000)
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("run_ttl", 24*time.Hour)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	v.SetDefault("rules.innings", rules.Innings)
	v.SetDefault("rules.bunt_aggressiveness", rules.BuntAggressiveness)
	v.SetDefault("rules.bunt_success_rate", rules.BuntSuccessRate)
	v.SetDefault("rules.double_play_rate", rules.DoublePlayRate)
	v.SetDefault("rules.ground_out_advance_rate", rules.GroundOutAdvanceRate)
	v.SetDefault("rules.sacrifice_fly_rate", rules.SacrificeFlyRate)

	v.SetDefault("roster.source", SourceCSV)
	v.SetDefault("roster.csv_dir", "./data")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "baseball_user")
	v.SetDefault("db.password", "baseball_pass")
	v.SetDefault("db.name", "baseball_sim")
	v.SetDefault("db.max_conns", 8)

	v.SetDefault("cache.ttl", 15*time.Minute)
}

// LoadConfig reads defaults, an optional lineup-sim.yaml from configDir and
// LINEUP_SIM_* environment overrides, in increasing precedence
func LoadConfig(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("lineup-sim")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("LINEUP_SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SeasonGames < 1 {
		return fmt.Errorf("season_games must be positive, got %d", c.SeasonGames)
	}
	if c.MaxTrials < 1 {
		return fmt.Errorf("max_trials must be positive, got %d", c.MaxTrials)
	}
	switch c.Roster.Source {
	case SourceCSV, SourcePostgres:
	default:
		return fmt.Errorf("unknown roster source %q", c.Roster.Source)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	return nil
}

// setupLogging configures the global zerolog logger
func setupLogging(level, format string) {
	var logLevel zerolog.Level
	switch strings.ToUpper(level) {
	case "TRACE":
		logLevel = zerolog.TraceLevel
	case "DEBUG":
		logLevel = zerolog.DebugLevel
	case "WARN":
		logLevel = zerolog.WarnLevel
	case "ERROR":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
