package game

import (
	"fmt"
	"maps"
	"slices"
)

// KInARow is played on an H x V board: the first player to place K marks
// in a row, column or diagonal wins. X moves first.
type KInARow struct {
	H int
	V int
	k int
}

func NewKInARow(h, v, k int) (KInARow, error) {
	if h <= 0 || v <= 0 {
		return KInARow{}, fmt.Errorf("invalid board size %dx%d", h, v)
	}
	if k <= 0 || (k > h && k > v) {
		return KInARow{}, fmt.Errorf("invalid run length %d for a %dx%d board", k, h, v)
	}
	return KInARow{H: h, V: v, k: k}, nil
}

func NewTicTacToe() KInARow {
	return KInARow{H: 3, V: 3, k: 3}
}

// Initial returns the empty board with X to move
func (g KInARow) Initial() State {
	moves := make([]Move, 0, g.H*g.V)
	for x := 1; x <= g.H; x++ {
		for y := 1; y <= g.V; y++ {
			moves = append(moves, Move{X: x, Y: y})
		}
	}
	return State{ToMove: X, Board: Board{}, Moves: moves}
}

// FromBoard rebuilds a full state from a board and the player to move.
// Legal moves are the empty cells, row-major; a completed run sets the
// utility. The board must be reachable: X moves first, so X has as many
// marks as O with X to move and one more with O to move, and only the last
// mover may have completed a run.
func (g KInARow) FromBoard(board Board, toMove Player) (State, error) {
	if toMove != X && toMove != O {
		return State{}, fmt.Errorf("invalid player to move %q", toMove)
	}
	state := State{ToMove: toMove, Board: maps.Clone(board)}
	if state.Board == nil {
		state.Board = Board{}
	}
	counts := map[Player]int{}
	runs := map[Player]bool{}
	for x := 1; x <= g.H; x++ {
		for y := 1; y <= g.V; y++ {
			m := Move{X: x, Y: y}
			mark, ok := state.Board[m]
			if !ok {
				state.Moves = append(state.Moves, m)
				continue
			}
			if mark != X && mark != O {
				return State{}, fmt.Errorf("invalid mark %q at %s", mark, m)
			}
			counts[mark]++
			if u := g.ComputeUtility(state.Board, m, mark); u != 0 {
				runs[mark] = true
				if state.Utility == 0 {
					state.Utility = u
				}
			}
		}
	}
	if len(state.Board)+len(state.Moves) != g.H*g.V {
		return State{}, fmt.Errorf("board has positions outside %dx%d", g.H, g.V)
	}

	want := counts[O]
	if toMove == O {
		want++
	}
	if counts[X] != want {
		return State{}, fmt.Errorf("unreachable board: %d X and %d O marks with %s to move", counts[X], counts[O], toMove)
	}
	if runs[toMove] {
		return State{}, fmt.Errorf("unreachable board: %s completed a run but %s moved last", toMove, g.SwitchPlayer(toMove))
	}
	return state, nil
}

func (g KInARow) Actions(s State) []Move {
	return s.Moves
}

// Result returns s unchanged if m is not legal
func (g KInARow) Result(s State, m Move) State {
	i := slices.Index(s.Moves, m)
	if i < 0 {
		return s
	}
	board := maps.Clone(s.Board)
	if board == nil {
		board = Board{}
	}
	board[m] = s.ToMove
	return State{
		ToMove:  g.SwitchPlayer(s.ToMove),
		Move:    m,
		Utility: g.ComputeUtility(board, m, s.ToMove),
		Board:   board,
		Moves:   slices.Delete(slices.Clone(s.Moves), i, i+1),
	}
}

func (g KInARow) TerminalTest(s State) bool {
	return s.Utility != 0 || len(s.Moves) == 0
}

// ComputeUtility returns +K if X completed a run through move, -K for O
func (g KInARow) ComputeUtility(board Board, move Move, mark Player) int {
	if mark == None {
		return 0
	}
	directions := [][2]int{{0, 1}, {1, 0}, {1, -1}, {1, 1}}
	for _, d := range directions {
		if g.inRow(board, move, mark, d) {
			if mark == X {
				return g.k
			}
			return -g.k
		}
	}
	return 0
}

func (g KInARow) inRow(board Board, move Move, mark Player, d [2]int) bool {
	n := 0
	for x, y := move.X, move.Y; board[Move{x, y}] == mark; x, y = x+d[0], y+d[1] {
		n++
	}
	for x, y := move.X-d[0], move.Y-d[1]; board[Move{x, y}] == mark; x, y = x-d[0], y-d[1] {
		n++
	}
	return n >= g.k
}

func (g KInARow) Utility(s State, player Player) int {
	if player == X {
		return s.Utility
	}
	return -s.Utility
}

func (g KInARow) SwitchPlayer(p Player) Player {
	if p == X {
		return O
	}
	return X
}

func (g KInARow) K() int {
	return g.k
}
