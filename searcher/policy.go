package searcher

import (
	"maps"

	"kinarow/game"
)

// simulate estimates the outcome below node and returns the winner, or
// game.None on a tie
func (t *tree) simulate(node *Node) game.Player {
	state := node.state

	// A node whose own move already decided the game needs no rollout
	if mark := state.Board[state.Move]; mark != game.None {
		if game.Decisive(t.game, t.game.ComputeUtility(state.Board, state.Move, mark)) {
			t.metrics.AddFastWin()
			return mark
		}
	}

	final := t.rollout(state.Copy())
	return t.outcome(final)
}

// rollout plays state to the end with the playout policy
func (t *tree) rollout(state game.State) game.State {
	if !t.game.TerminalTest(state) {
		t.metrics.AddFullPlayout()
	}
	for !t.game.TerminalTest(state) {
		move, ok := t.playoutMove(state)
		if !ok {
			break
		}
		state = t.game.Result(state, move)
	}
	return state
}

// playoutMove wins if possible, blocks the opponent's win otherwise and
// falls back to a uniformly random move
func (t *tree) playoutMove(state game.State) (game.Move, bool) {
	if len(state.Moves) == 0 {
		return game.Move{}, false
	}
	player := state.ToMove
	if move, ok := findWinningMove(t.game, state, player); ok {
		return move, true
	}
	if move, ok := findWinningMove(t.game, state, t.game.SwitchPlayer(player)); ok {
		return move, true
	}
	return state.Moves[t.rng.Intn(len(state.Moves))], true
}

// outcome maps the utility of a final state, from the root player's
// perspective, to the winning player
func (t *tree) outcome(final game.State) game.Player {
	utility := t.game.Utility(final, t.player)
	switch {
	case utility > 0:
		return t.player
	case utility < 0:
		return t.game.SwitchPlayer(t.player)
	}
	return game.None
}

// findWinningMove returns the first legal move of state, in enumeration
// order, that wins immediately for player
func findWinningMove(g game.Game, state game.State, player game.Player) (game.Move, bool) {
	board := maps.Clone(state.Board)
	if board == nil {
		board = game.Board{}
	}
	for _, move := range state.Moves {
		prev, occupied := board[move]
		board[move] = player
		decisive := game.Decisive(g, g.ComputeUtility(board, move, player))
		if occupied {
			board[move] = prev
		} else {
			delete(board, move)
		}
		if decisive {
			return move, true
		}
	}
	return game.Move{}, false
}
