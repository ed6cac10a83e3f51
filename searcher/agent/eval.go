package agent

import (
	"context"

	"kinarow/game"
	"kinarow/metrics"
	"kinarow/searcher"

	"golang.org/x/exp/rand"
)

type evaluationAgent struct {
	mcts *searcher.MCTS
}

// NewEvaluationAgent returns an agent playing the most visited move of
// each search
func NewEvaluationAgent(mcts *searcher.MCTS) Agent {
	return evaluationAgent{mcts: mcts}
}

func (a evaluationAgent) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	return a.mcts.DecideMove(ctx, state)
}

type perfectAgent struct {
	game game.Game
}

// NewPerfectAgent returns an agent playing the first best move found by
// exhaustive search. Only practical on small boards.
func NewPerfectAgent(g game.Game) Agent {
	return perfectAgent{game: g}
}

func (a perfectAgent) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	if a.game.TerminalTest(state) {
		return state.Move, metrics.SearchMetric{}, false
	}
	move, _, ok := game.Best(a.game, state)
	return move, metrics.SearchMetric{}, ok
}

type randomAgent struct {
	rng *rand.Rand
}

// NewRandomAgent returns an agent playing uniformly random legal moves
func NewRandomAgent(seed uint64) Agent {
	return &randomAgent{rng: rand.New(rand.NewSource(seed))}
}

func (a *randomAgent) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	if len(state.Moves) == 0 {
		return state.Move, metrics.SearchMetric{}, false
	}
	return state.Moves[a.rng.Intn(len(state.Moves))], metrics.SearchMetric{}, true
}
