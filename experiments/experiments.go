package experiments

import (
	"context"
	"fmt"
	"math"
	"time"

	"kinarow/engine"
	"kinarow/game"
	"kinarow/metrics"
	"kinarow/searcher"
	"kinarow/searcher/agent"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

const (
	NumGames   = 20 // Per match up
	TimeBudget = 50 * time.Millisecond
)

type Experiment struct {
	Name     string
	Configs  []metrics.AgentConfig
	MatchUps [][2]metrics.AgentConfig // Each pair plays Settings.Games games
}

type Settings struct {
	Games     int    // Per match up, defaults to NumGames
	Seed      uint64 // Base seed of the agents, 0 for time-seeded agents
	OutputDir string // CSV output is skipped when empty
}

type MatchUpSummary struct {
	Agent1, Agent2 int // AgentConfig.ID
	Games          int
	Wins1, Wins2   int
	Ties           int
	Score          float64 // Mean score of Agent1, 1 per win and 0.5 per tie
	StdDev         float64
}

type Summary struct {
	Run      string
	Dir      string // Output folder, empty when nothing was written
	MatchUps []MatchUpSummary
	Games    []metrics.GameRecord
	Moves    []metrics.MoveRecord
}

// Exploration pits agents with different exploration constants against the
// default one
func Exploration(duration time.Duration) Experiment {
	baseline := metrics.AgentConfig{ID: 0, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration}
	configs := []metrics.AgentConfig{
		{ID: 1, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: 0.5},
		{ID: 2, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: 1},
		{ID: 3, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: 2},
		{ID: 4, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: 4},
	}
	return against("exploration", baseline, configs)
}

// Strength pits searches of growing budgets against perfect play
func Strength(duration time.Duration) Experiment {
	baseline := metrics.AgentConfig{ID: 0, Kind: "perfect"}
	configs := []metrics.AgentConfig{
		{ID: 1, Kind: "random"},
		{ID: 2, Kind: "mcts", Goroutines: 1, Duration: duration / 4, Exploration: searcher.Exploration},
		{ID: 3, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration},
		{ID: 4, Kind: "mcts", Goroutines: 1, Duration: duration * 4, Exploration: searcher.Exploration},
	}
	return against("strength", baseline, configs)
}

// Parallelization pits root-parallel agents against the sequential baseline
func Parallelization(duration time.Duration) Experiment {
	baseline := metrics.AgentConfig{ID: 0, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration}
	configs := []metrics.AgentConfig{
		{ID: 1, Kind: "mcts", Goroutines: 2, Duration: duration, Exploration: searcher.Exploration},
		{ID: 2, Kind: "mcts", Goroutines: 4, Duration: duration, Exploration: searcher.Exploration},
		{ID: 3, Kind: "mcts", Goroutines: 8, Duration: duration, Exploration: searcher.Exploration},
	}
	return against("parallelization", baseline, configs)
}

// TreeReuse pits an agent keeping its tree between moves against one that
// does not
func TreeReuse(duration time.Duration) Experiment {
	baseline := metrics.AgentConfig{ID: 0, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration}
	configs := []metrics.AgentConfig{
		{ID: 1, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration, TreeReuse: true},
	}
	return against("tree_reuse", baseline, configs)
}

// Temperature pits agents sampling their moves from the visit counts
// against the most-visited choice
func Temperature(duration time.Duration) Experiment {
	baseline := metrics.AgentConfig{ID: 0, Kind: "mcts", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration}
	configs := []metrics.AgentConfig{
		{ID: 1, Kind: "sampling", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration, Temperature: 1},
		{ID: 2, Kind: "sampling", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration, Temperature: 0.5},
		{ID: 3, Kind: "sampling", Goroutines: 1, Duration: duration, Exploration: searcher.Exploration, Temperature: 0.25},
	}
	return against("temperature", baseline, configs)
}

// Presets returns the named experiments runnable from the command line
func Presets(duration time.Duration) map[string]Experiment {
	if duration <= 0 {
		duration = TimeBudget
	}
	presets := map[string]Experiment{}
	for _, e := range []Experiment{Exploration(duration), Strength(duration), Parallelization(duration), TreeReuse(duration), Temperature(duration)} {
		presets[e.Name] = e
	}
	return presets
}

func against(name string, baseline metrics.AgentConfig, configs []metrics.AgentConfig) Experiment {
	matchUps := [][2]metrics.AgentConfig{}
	for _, config := range configs {
		matchUps = append(matchUps, [2]metrics.AgentConfig{baseline, config})
	}
	return Experiment{
		Name:     name,
		Configs:  append([]metrics.AgentConfig{baseline}, configs...),
		MatchUps: matchUps,
	}
}

// Run plays every match up of the experiment, alternating the first player
// between games, and stores the records as CSV when an output folder is set
func Run(ctx context.Context, g game.KInARow, experiment Experiment, settings Settings) (*Summary, error) {
	if settings.Games <= 0 {
		settings.Games = NumGames
	}
	summary := &Summary{Run: uuid.NewString()}

	log.Info().Msgf("starting %s experiment %s...", experiment.Name, summary.Run)

	count := 0
	for mi, matchUp := range experiment.MatchUps {
		config1, config2 := matchUp[0], matchUp[1]
		scores := make([]float64, 0, settings.Games)
		result := MatchUpSummary{Agent1: config1.ID, Agent2: config2.ID}

		log.Info().Msgf("starting matchup %d of %d between agent1=%+v and agent2=%+v...", mi+1, len(experiment.MatchUps), config1, config2)

		for i := 0; i < settings.Games && ctx.Err() == nil; i++ {
			count++
			first, second := config1, config2
			if i%2 == 1 {
				first, second = config2, config1
			}

			winner, gameMetric, moveMetrics := runGame(ctx, g, first, second, seedFor(settings.Seed, count))
			summary.Games = append(summary.Games, metrics.GameRecord{
				ID:         count,
				Run:        summary.Run,
				Agent1:     first.ID,
				Agent2:     second.ID,
				GameMetric: gameMetric,
			})
			for _, mm := range moveMetrics {
				summary.Moves = append(summary.Moves, metrics.MoveRecord{
					Game:       count,
					MoveMetric: mm,
				})
			}

			// The first agent always plays the starting player
			firstWon := winner == gameMetric.StartingPlayer
			switch {
			case winner == game.None:
				result.Ties++
				scores = append(scores, 0.5)
			case firstWon == (i%2 == 0):
				result.Wins1++
				scores = append(scores, 1)
			default:
				result.Wins2++
				scores = append(scores, 0)
			}
			result.Games++

			log.Info().Msgf("completed matchup %d of %d game %d with winner: %s", mi+1, len(experiment.MatchUps), i+1, winner)
		}

		result.Score, result.StdDev = meanStdDev(scores)
		summary.MatchUps = append(summary.MatchUps, result)
		log.Info().
			Int("agent1", result.Agent1).
			Int("agent2", result.Agent2).
			Int("wins1", result.Wins1).
			Int("wins2", result.Wins2).
			Int("ties", result.Ties).
			Float64("score", result.Score).
			Float64("stddev", result.StdDev).
			Msgf("completed matchup %d of %d", mi+1, len(experiment.MatchUps))
	}

	log.Info().Msgf("completed %s experiment", experiment.Name)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("experiment %s interrupted: %w", experiment.Name, err)
	}
	if settings.OutputDir == "" {
		return summary, nil
	}
	dir, err := store(experiment, summary, settings.OutputDir)
	if err != nil {
		return summary, err
	}
	summary.Dir = dir
	return summary, nil
}

func store(experiment Experiment, summary *Summary, outputDir string) (string, error) {
	writer, err := metrics.NewWriter(outputDir, experiment.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	if err := writer.WriteAgentConfigs(experiment.Configs); err != nil {
		return "", err
	}
	log.Info().Msg("stored agent configs")

	if err := writer.WriteGameRecords(summary.Games); err != nil {
		return "", err
	}
	log.Info().Msg("stored game records")

	if err := writer.WriteMoveRecords(summary.Moves); err != nil {
		return "", err
	}
	log.Info().Msgf("stored move records in %s", writer.Dir())
	return writer.Dir(), nil
}

// runGame executes a single game between two agents and returns the winner
func runGame(ctx context.Context, g game.KInARow, config1, config2 metrics.AgentConfig, seed uint64) (game.Player, metrics.GameMetric, []metrics.MoveMetric) {
	agents := []agent.Agent{
		CreateAgent(g, config1, seed),
		CreateAgent(g, config2, OffsetSeed(seed, 1)),
	}
	e := engine.LocalEngine(g, g.Initial(), agents)
	return e.Run(ctx)
}

// CreateAgent builds the agent described by config. A zero seed leaves the
// agent time-seeded.
func CreateAgent(g game.Game, config metrics.AgentConfig, seed uint64) agent.Agent {
	switch config.Kind {
	case "perfect":
		return agent.NewPerfectAgent(g)
	case "random":
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return agent.NewRandomAgent(seed)
	}

	options := []searcher.Option{
		searcher.WithMetrics(),
		searcher.WithSeed(seed),
	}
	if config.Exploration > 0 {
		options = append(options, searcher.WithExploration(config.Exploration))
	}
	if config.Goroutines > 0 {
		options = append(options, searcher.WithGoroutines(config.Goroutines))
	}
	if config.Episodes > 0 {
		options = append(options, searcher.WithEpisodes(config.Episodes))
	}
	if config.Duration > 0 {
		options = append(options, searcher.WithDuration(config.Duration))
	}
	if config.TreeReuse {
		options = append(options, searcher.WithTreeReuse())
	}
	mcts := searcher.NewMCTS(g, options...)
	if config.Kind == "sampling" {
		samplingSeed := OffsetSeed(seed, 1)
		if samplingSeed == 0 {
			samplingSeed = uint64(time.Now().UnixNano())
		}
		return agent.NewSamplingAgent(mcts, config.Temperature, samplingSeed)
	}
	return agent.NewEvaluationAgent(mcts)
}

func seedFor(base uint64, game int) uint64 {
	return OffsetSeed(base, uint64(2*game))
}

// OffsetSeed derives a sibling seed from seed. A zero seed stays zero so
// that every agent built from it is time-seeded.
func OffsetSeed(seed, offset uint64) uint64 {
	if seed == 0 {
		return 0
	}
	return seed + offset
}

func meanStdDev(scores []float64) (float64, float64) {
	switch len(scores) {
	case 0:
		return 0, 0
	case 1:
		return scores[0], 0
	}
	mean, std := stat.MeanStdDev(scores, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
