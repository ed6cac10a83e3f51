package game

import (
	"maps"
	"slices"
)

// Player identifies a side. None doubles as the tie marker for outcomes.
type Player string

const (
	X    Player = "X"
	O    Player = "O"
	None Player = ""
)

// Board maps occupied positions to the mark placed on them
type Board map[Move]Player

// State is an immutable snapshot of a position. Game operations always
// return a new State; Copy must be used before handing a State to code that
// may keep it.
type State struct {
	ToMove  Player `json:"to_move"`
	Move    Move   `json:"move"`    // Move that produced this state
	Utility int    `json:"utility"` // Signed from X's perspective, 0 if undecided
	Board   Board  `json:"board"`
	Moves   []Move `json:"moves"` // Legal moves from this state
}

// Copy returns a deep copy that shares no board or move storage with s
func (s State) Copy() State {
	c := s
	c.Board = maps.Clone(s.Board)
	if c.Board == nil {
		c.Board = Board{}
	}
	c.Moves = slices.Clone(s.Moves)
	return c
}

// Key encodes the board and the player to move, positions sorted
// row-major. Equal keys mean equal positions.
func (s State) Key() string {
	return string(s.ToMove) + "|" + s.Board.Key()
}

// Key encodes the occupied positions of b in row-major order
func (b Board) Key() string {
	moves := slices.SortedFunc(maps.Keys(b), compareMoves)
	buf := make([]byte, 0, len(moves)*6)
	for _, m := range moves {
		buf = m.appendTo(buf)
		buf = append(buf, '=')
		buf = append(buf, b[m]...)
		buf = append(buf, ';')
	}
	return string(buf)
}

// Game supplies the rules of a two-player zero-sum game. Implementations
// must be pure: no method may mutate the State or Board it is given.
type Game interface {
	// Actions lists the legal moves of s in a deterministic order. It must
	// equal s.Moves: the search expands nodes through Actions but plays
	// rollouts and win checks over s.Moves.
	Actions(s State) []Move
	// Result applies m and advances the player to move
	Result(s State, m Move) State
	// TerminalTest reports whether the game is decided or no move remains
	TerminalTest(s State) bool
	// ComputeUtility evaluates whether mark's move at board decided the
	// game. A decisive result has magnitude K; 0 means undecided.
	ComputeUtility(board Board, move Move, mark Player) int
	// Utility evaluates s from player's perspective: positive is a win,
	// negative a loss, zero a tie or undecided.
	Utility(s State, player Player) int
	SwitchPlayer(p Player) Player
	K() int
}

// Decisive reports whether a ComputeUtility value settles the game
func Decisive(g Game, utility int) bool {
	return utility != 0 && abs(utility) >= g.K()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
