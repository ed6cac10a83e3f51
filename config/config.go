package config

import (
	"fmt"
	"strings"
	"time"

	"kinarow/game"
	"kinarow/searcher"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "KINAROW"

type Config struct {
	H           int           `mapstructure:"h"`
	V           int           `mapstructure:"v"`
	K           int           `mapstructure:"k"`
	Duration    time.Duration `mapstructure:"duration"`
	Episodes    int           `mapstructure:"episodes"`
	Goroutines  int           `mapstructure:"goroutines"`
	Exploration float64       `mapstructure:"exploration"`
	Seed        uint64        `mapstructure:"seed"`
	TreeReuse   bool          `mapstructure:"tree_reuse"`
	LogLevel    string        `mapstructure:"log_level"`
	ServerAddr  string        `mapstructure:"server_addr"`
	Games       int           `mapstructure:"games"`
	OutputDir   string        `mapstructure:"output_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("h", 3)
	v.SetDefault("v", 3)
	v.SetDefault("k", 3)
	v.SetDefault("duration", searcher.DefaultDuration)
	v.SetDefault("episodes", 0)
	v.SetDefault("goroutines", 1)
	v.SetDefault("exploration", searcher.Exploration)
	v.SetDefault("seed", 0)
	v.SetDefault("tree_reuse", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("games", 20)
	v.SetDefault("output_dir", "results")
}

// Load reads the configuration file at path, if any, on top of the defaults.
// KINAROW_* environment variables take precedence over both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.Game(); err != nil {
		return nil, err
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Game() (game.KInARow, error) {
	return game.NewKInARow(c.H, c.V, c.K)
}

func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// SearchOptions translates the search settings into searcher options
func (c *Config) SearchOptions() []searcher.Option {
	options := []searcher.Option{
		searcher.WithDuration(c.Duration),
		searcher.WithEpisodes(c.Episodes),
		searcher.WithGoroutines(c.Goroutines),
		searcher.WithExploration(c.Exploration),
		searcher.WithSeed(c.Seed),
	}
	if c.TreeReuse {
		options = append(options, searcher.WithTreeReuse())
	}
	return options
}
