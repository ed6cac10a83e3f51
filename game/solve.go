package game

// Solve computes the exact value of every legal move of s for the player
// to move: +1 forced win, 0 draw, -1 forced loss. Meant for small boards;
// the whole game tree below s is searched.
func Solve(g Game, s State) map[Move]int {
	memo := map[string]int{}
	values := make(map[Move]int, len(s.Moves))
	for _, m := range g.Actions(s) {
		values[m] = -negamax(g, g.Result(s, m), memo)
	}
	return values
}

// Best returns the first move in action order with the highest solved value
func Best(g Game, s State) (Move, int, bool) {
	values := Solve(g, s)
	var best Move
	bestValue, found := -2, false
	for _, m := range g.Actions(s) {
		if v := values[m]; v > bestValue {
			best, bestValue, found = m, v, true
		}
	}
	return best, bestValue, found
}

// negamax values s for its player to move
func negamax(g Game, s State, memo map[string]int) int {
	if g.TerminalTest(s) {
		return sign(g.Utility(s, s.ToMove))
	}
	key := s.Key()
	if v, ok := memo[key]; ok {
		return v
	}

	best := -1
	for _, m := range g.Actions(s) {
		if v := -negamax(g, g.Result(s, m), memo); v > best {
			best = v
			if best == 1 {
				break
			}
		}
	}
	memo[key] = best
	return best
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
