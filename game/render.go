package game

import (
	"strings"

	"github.com/muesli/termenv"
)

// Render draws the board of s one row per line, X in red and O in blue
// when the profile supports colour. termenv.Ascii renders plain text.
func (g KInARow) Render(s State, profile termenv.Profile) string {
	var sb strings.Builder
	for x := 1; x <= g.H; x++ {
		for y := 1; y <= g.V; y++ {
			if y > 1 {
				sb.WriteByte(' ')
			}
			m := Move{X: x, Y: y}
			switch mark := s.Board[m]; mark {
			case X:
				sb.WriteString(profile.String("X").Foreground(profile.Color("1")).Bold().String())
			case O:
				sb.WriteString(profile.String("O").Foreground(profile.Color("4")).Bold().String())
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
