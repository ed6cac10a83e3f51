package engine

import (
	"context"
	"slices"
	"time"

	"kinarow/game"
	"kinarow/metrics"
	"kinarow/searcher/agent"

	"github.com/rs/zerolog/log"
)

type Engine struct {
	Game   game.Game
	State  game.State
	Agents []agent.Agent // Agents[0] plays the player to move in the initial state

	// OnMove, if set, is called after each move with the new state
	OnMove func(metric metrics.MoveMetric, state game.State)

	players []game.Player
}

func LocalEngine(g game.Game, initial game.State, agents []agent.Agent) *Engine {
	if len(agents) != 2 {
		panic("need exactly two agents")
	}

	first := initial.ToMove
	return &Engine{
		Game:    g,
		State:   initial.Copy(),
		Agents:  agents,
		players: []game.Player{first, g.SwitchPlayer(first)},
	}
}

// Run plays the game until it is decided or ctx is done and returns the
// winner, game.None on a tie
func (e *Engine) Run(ctx context.Context) (game.Player, metrics.GameMetric, []metrics.MoveMetric) {
	gameMetric := metrics.GameMetric{
		StartingPlayer: e.State.ToMove,
		StartTime:      time.Now(),
	}
	var moveMetrics []metrics.MoveMetric

	log.Info().Msgf("player %s is starting", e.State.ToMove)

	turnCount := 1
	for !e.Game.TerminalTest(e.State) && ctx.Err() == nil {
		player := e.State.ToMove
		agentIndex := slices.Index(e.players, player)

		move, search, ok := e.Agents[agentIndex].FindMove(ctx, e.State)
		if !ok || !slices.Contains(e.State.Moves, move) {
			log.Warn().Msgf("agent for %s returned an invalid move %s, playing the first legal move", player, move)
			move = e.State.Moves[0]
		}

		e.State = e.Game.Result(e.State, move)
		moveMetric := metrics.MoveMetric{
			Step:         turnCount,
			Player:       player,
			Move:         move,
			SearchMetric: search,
		}
		moveMetrics = append(moveMetrics, moveMetric)
		log.Debug().Msgf("turn %d: %s played %s", turnCount, player, move)
		if e.OnMove != nil {
			e.OnMove(moveMetric, e.State)
		}
		turnCount++
	}

	winner := e.Winner()
	gameMetric.Winner = winner
	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = len(moveMetrics)

	if winner != game.None {
		log.Info().Msgf("game ended with winner %s after %d moves", winner, gameMetric.TotalMoves)
	} else {
		log.Info().Msgf("game ended without a winner after %d moves", gameMetric.TotalMoves)
	}
	return winner, gameMetric, moveMetrics
}

// Winner reads the current state from the first player's perspective
func (e *Engine) Winner() game.Player {
	utility := e.Game.Utility(e.State, e.players[0])
	switch {
	case utility > 0:
		return e.players[0]
	case utility < 0:
		return e.players[1]
	}
	return game.None
}
