package agent

import (
	"context"

	"kinarow/game"
	"kinarow/metrics"
)

type Agent interface {
	// FindMove returns a move for the player to move in state and the
	// search metrics (if collected). ok is false when no legal move exists.
	FindMove(ctx context.Context, state game.State) (move game.Move, metric metrics.SearchMetric, ok bool)
}
