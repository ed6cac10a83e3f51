package game

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Move is a board position, 1-based row X and column Y. The zero Move is
// the placeholder carried by states that were not produced by a move.
type Move struct {
	X int
	Y int
}

func (m Move) IsZero() bool {
	return m == Move{}
}

func (m Move) String() string {
	return string(m.appendTo(nil))
}

// appendTo appends the "x,y" form of m to buf
func (m Move) appendTo(buf []byte) []byte {
	buf = strconv.AppendInt(buf, int64(m.X), 10)
	buf = append(buf, ',')
	return strconv.AppendInt(buf, int64(m.Y), 10)
}

// MarshalText lets moves key JSON objects, as in Board
func (m Move) MarshalText() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseMove(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMove parses the "x,y" form of a move
func ParseMove(s string) (Move, error) {
	xs, ys, found := strings.Cut(s, ",")
	if !found {
		return Move{}, fmt.Errorf("invalid move %q: want x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Move{}, fmt.Errorf("invalid move row %q: %w", xs, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Move{}, fmt.Errorf("invalid move column %q: %w", ys, err)
	}
	return Move{X: x, Y: y}, nil
}

func compareMoves(a, b Move) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}
