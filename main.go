package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"syscall"
	"time"

	"kinarow/config"
	"kinarow/engine"
	"kinarow/experiments"
	"kinarow/game"
	"kinarow/metrics"
	"kinarow/searcher"
	"kinarow/searcher/agent"
	"kinarow/server"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: kinarow <command> [flags]

commands:
  play        play a game against the search (or between two agents)
  experiment  run an experiment preset and store the results as CSV
  serve       serve move requests over HTTP
  move        print the search's move for a JSON state read from stdin
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "play":
		err = runPlay(ctx, args)
	case "experiment":
		err = runExperiment(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "move":
		err = runMove(ctx, args, os.Stdin, os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msgf("%s failed", os.Args[1])
	}
}

// load parses the common flags and reads the configuration they point to
func load(fs *flag.FlagSet, args []string) (*config.Config, game.KInARow, error) {
	path := fs.String("config", "", "Path to a YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, game.KInARow{}, err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return nil, game.KInARow{}, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, game.KInARow{}, err
	}
	zerolog.SetGlobalLevel(level)

	g, err := cfg.Game()
	if err != nil {
		return nil, game.KInARow{}, err
	}
	return cfg, g, nil
}

func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	opponent := fs.String("opponent", "human", "Opponent of the search: human, mcts, sampling, perfect, random or remote")
	url := fs.String("url", "http://localhost:8080", "Server of the remote opponent")
	second := fs.Bool("second", false, "Let the opponent move first")
	cfg, g, err := load(fs, args)
	if err != nil {
		return err
	}

	mcts := agent.NewEvaluationAgent(searcher.NewMCTS(g, append(cfg.SearchOptions(), searcher.WithMetrics())...))
	var other agent.Agent
	switch *opponent {
	case "human":
		other = newHumanAgent(g, os.Stdin, os.Stdout)
	case "remote":
		other = server.NewClient(*url, g, cfg.Episodes)
	case "mcts", "sampling", "perfect", "random":
		other = experiments.CreateAgent(g, metrics.AgentConfig{
			Kind:        *opponent,
			Goroutines:  cfg.Goroutines,
			Duration:    cfg.Duration,
			Episodes:    cfg.Episodes,
			Exploration: cfg.Exploration,
			TreeReuse:   cfg.TreeReuse,
		}, experiments.OffsetSeed(cfg.Seed, 1))
	default:
		return fmt.Errorf("unknown opponent %q", *opponent)
	}

	agents := []agent.Agent{mcts, other}
	if *second {
		agents = []agent.Agent{other, mcts}
	}

	profile := termenv.ColorProfile()
	initial := g.Initial()
	fmt.Print(g.Render(initial, profile))

	e := engine.LocalEngine(g, initial, agents)
	e.OnMove = func(metric metrics.MoveMetric, state game.State) {
		fmt.Printf("\n%s plays %s\n%s", metric.Player, metric.Move, g.Render(state, profile))
		if metric.Episodes > 0 {
			log.Info().Msgf("search ran %d episodes in %s", metric.Episodes, metric.Duration)
		}
	}
	winner, _, _ := e.Run(ctx)
	if winner == game.None {
		fmt.Println("\nno winner")
	} else {
		fmt.Printf("\n%s wins\n", winner)
	}
	return ctx.Err()
}

func runExperiment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("experiment", flag.ExitOnError)
	name := fs.String("name", "strength", "Experiment preset to run")
	cfg, g, err := load(fs, args)
	if err != nil {
		return err
	}

	presets := experiments.Presets(cfg.Duration)
	experiment, ok := presets[*name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown experiment %q, expected one of %s", *name, strings.Join(names, ", "))
	}

	summary, err := experiments.Run(ctx, g, experiment, experiments.Settings{
		Games:     cfg.Games,
		Seed:      cfg.Seed,
		OutputDir: cfg.OutputDir,
	})
	if err != nil {
		return err
	}
	for _, result := range summary.MatchUps {
		fmt.Printf("agent %d vs agent %d: %d-%d-%d score %.3f ± %.3f\n",
			result.Agent1, result.Agent2, result.Wins1, result.Ties, result.Wins2, result.Score, result.StdDev)
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, _, err := load(fs, args)
	if err != nil {
		return err
	}
	// Every request builds its own search, so no tree is kept between them
	return server.New(cfg.SearchOptions()...).ListenAndServe(ctx, cfg.ServerAddr)
}

// runMove decides a single move for the state read from in, formatted as a
// server request
func runMove(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	cfg, _, err := load(fs, args)
	if err != nil {
		return err
	}

	var req server.FindMoveRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	if req.H == 0 {
		req.H, req.V, req.K = cfg.H, cfg.V, cfg.K
	}
	g, err := game.NewKInARow(req.H, req.V, req.K)
	if err != nil {
		return err
	}
	state, err := g.FromBoard(req.Board, req.ToMove)
	if err != nil {
		return err
	}

	options := cfg.SearchOptions()
	if req.Episodes > 0 {
		options = append(options, searcher.WithEpisodes(req.Episodes))
	}
	mcts := searcher.NewMCTS(g, options...)
	move, _, ok := mcts.DecideMove(ctx, state)
	if !ok {
		return errors.New("no legal move")
	}
	fmt.Fprintln(out, move)
	return nil
}

type humanAgent struct {
	game    game.Game
	scanner *bufio.Scanner
	out     io.Writer
}

func newHumanAgent(g game.Game, in io.Reader, out io.Writer) agent.Agent {
	return &humanAgent{game: g, scanner: bufio.NewScanner(in), out: out}
}

func (a *humanAgent) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	if a.game.TerminalTest(state) {
		return state.Move, metrics.SearchMetric{}, false
	}
	for ctx.Err() == nil {
		fmt.Fprintf(a.out, "%s to move (x,y): ", state.ToMove)
		if !a.scanner.Scan() {
			return state.Move, metrics.SearchMetric{}, false
		}
		move, err := game.ParseMove(strings.TrimSpace(a.scanner.Text()))
		if err == nil && slices.Contains(state.Moves, move) {
			return move, metrics.SearchMetric{}, true
		}
		fmt.Fprintf(a.out, "illegal move, expected one of %v\n", state.Moves)
	}
	return state.Move, metrics.SearchMetric{}, false
}
