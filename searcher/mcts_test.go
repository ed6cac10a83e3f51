package searcher

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"kinarow/game"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestNewMCTS(t *testing.T) {
	g := game.NewTicTacToe()

	t.Run("defaulting to a time budget", func(t *testing.T) {
		m := NewMCTS(g)

		require.Equal(t, DefaultDuration, m.duration)
		require.Equal(t, Exploration, m.exploration)
		require.Equal(t, 1, m.goroutines)
	})

	t.Run("episodes only disables the default deadline", func(t *testing.T) {
		m := NewMCTS(g, WithEpisodes(10))

		require.Zero(t, m.duration)
		require.Equal(t, 10, m.episodes)
	})

	t.Run("ignoring invalid options", func(t *testing.T) {
		m := NewMCTS(g, WithDuration(-time.Second), WithGoroutines(0), WithExploration(-1))

		require.Equal(t, DefaultDuration, m.duration)
		require.Equal(t, 1, m.goroutines)
		require.Equal(t, Exploration, m.exploration)
	})

	t.Run("disabling tree reuse for parallel search", func(t *testing.T) {
		m := NewMCTS(g, WithGoroutines(2), WithTreeReuse())

		require.False(t, m.reuse)
	})
}

func TestDecideMoveStatistics(t *testing.T) {
	g := game.NewTicTacToe()

	t.Run("visiting the root once per episode", func(t *testing.T) {
		const episodes = 300
		m := NewMCTS(g, WithEpisodes(episodes), WithSeed(1), WithMetrics())

		_, metric, ok := m.DecideMove(context.Background(), g.Initial())

		require.True(t, ok)
		require.Equal(t, episodes, metric.Episodes)
		require.Equal(t, episodes, m.lastRoot.visits, "Every episode should back up through the root")

		sum := 0
		for _, child := range m.lastRoot.children {
			sum += child.visits
		}
		require.Equal(t, episodes, sum, "Every episode should end below the root")
	})

	t.Run("keeping visits consistent across the tree", func(t *testing.T) {
		m := NewMCTS(g, WithEpisodes(500), WithSeed(2))
		m.DecideMove(context.Background(), g.Initial())

		walk(m.lastRoot, func(n *Node) {
			sum := 0
			for _, child := range n.children {
				require.Same(t, n, child.parent)
				sum += child.visits
			}
			require.LessOrEqual(t, sum, n.visits, "Children cannot be visited more than their parent")
			if n.parent != nil {
				require.LessOrEqual(t, n.score, float64(n.visits)*Win, "Score cannot exceed one win per visit")
			}
		})
	})

	t.Run("expanding each node with a single Actions call", func(t *testing.T) {
		spy := newSpyGame()
		m := NewMCTS(spy, WithEpisodes(1000), WithSeed(3))
		m.DecideMove(context.Background(), spy.Initial())

		expanded := map[string]int{}
		walk(m.lastRoot, func(n *Node) {
			if len(n.children) > 0 {
				expanded[n.state.Key()]++
			}
		})

		require.NotEmpty(t, expanded)
		require.Equal(t, expanded, spy.calls, "Actions should be called only when expanding, once per node")
	})

	t.Run("adding no score on a tie", func(t *testing.T) {
		// One empty cell left, filling it wins for no one
		s := play(g,
			game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 2}, game.Move{X: 3, Y: 3}, game.Move{X: 1, Y: 2},
			game.Move{X: 3, Y: 2}, game.Move{X: 3, Y: 1}, game.Move{X: 1, Y: 3}, game.Move{X: 2, Y: 3},
		)
		m := NewMCTS(g, WithEpisodes(20), WithSeed(4))

		move, _, ok := m.DecideMove(context.Background(), s)

		require.True(t, ok)
		require.Equal(t, game.Move{X: 2, Y: 1}, move)
		walk(m.lastRoot, func(n *Node) {
			require.Zero(t, n.score, "Ties should only add visits")
		})
		require.Equal(t, 20, m.lastRoot.visits)
		require.Equal(t, 20, m.lastRoot.children[0].visits)
	})
}

func TestDecideMoveDegenerate(t *testing.T) {
	g := game.NewTicTacToe()

	t.Run("searching a decided position", func(t *testing.T) {
		s := play(g, game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 1}, game.Move{X: 1, Y: 2}, game.Move{X: 2, Y: 2}, game.Move{X: 1, Y: 3})
		m := NewMCTS(g, WithEpisodes(50))

		move, _, ok := m.DecideMove(context.Background(), s)

		require.False(t, ok, "No legal move should be reported")
		require.Equal(t, s.Move, move, "Root's own move should be returned")
		require.Empty(t, m.lastRoot.children, "Terminal root should never be expanded")
		require.Equal(t, 50, m.lastRoot.visits)
	})

	t.Run("searching a state without moves", func(t *testing.T) {
		s := game.State{ToMove: game.X, Board: game.Board{}}
		m := NewMCTS(g, WithEpisodes(5))

		move, _, ok := m.DecideMove(context.Background(), s)

		require.False(t, ok)
		require.True(t, move.IsZero())
	})

	t.Run("stopping on a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m := NewMCTS(g, WithDuration(time.Minute), WithMetrics())

		start := time.Now()
		_, metric, ok := m.DecideMove(ctx, g.Initial())

		require.False(t, ok, "No episode should have run")
		require.Zero(t, metric.Episodes)
		require.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("stopping at the deadline", func(t *testing.T) {
		m := NewMCTS(g, WithDuration(50*time.Millisecond))

		start := time.Now()
		_, _, ok := m.DecideMove(context.Background(), g.Initial())

		require.True(t, ok)
		require.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestDecideMoveAgainstOracle(t *testing.T) {
	g := game.NewTicTacToe()
	positions := map[string]game.State{
		"empty board": g.Initial(),
		"X can win at once": play(g,
			game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 1}, game.Move{X: 1, Y: 2}, game.Move{X: 2, Y: 2},
		),
		"O can win at once": play(g,
			game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 1}, game.Move{X: 1, Y: 2},
			game.Move{X: 2, Y: 2}, game.Move{X: 3, Y: 3},
		),
		"X wins on the diagonal": play(g,
			game.Move{X: 1, Y: 1}, game.Move{X: 1, Y: 2}, game.Move{X: 2, Y: 2}, game.Move{X: 1, Y: 3},
		),
	}

	for name, s := range positions {
		t.Run(name, func(t *testing.T) {
			_, best, _ := game.Best(g, s)
			values := game.Solve(g, s)
			m := NewMCTS(g, WithEpisodes(5000), WithSeed(42))

			move, _, ok := m.DecideMove(context.Background(), s)

			require.True(t, ok)
			require.Contains(t, values, move, "Chosen move should be legal")
			require.GreaterOrEqual(t, values[move], best, "Chosen move %s should not be worse than the best", move)
		})
	}
}

func TestDecideMoveParallel(t *testing.T) {
	g := game.NewTicTacToe()
	s := play(g, game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 1}, game.Move{X: 1, Y: 2}, game.Move{X: 2, Y: 2})
	m := NewMCTS(g, WithGoroutines(4), WithEpisodes(2000), WithSeed(5), WithMetrics())

	move, metric, ok := m.DecideMove(context.Background(), s)

	require.True(t, ok)
	require.Equal(t, game.Move{X: 1, Y: 3}, move)
	require.Equal(t, 2000, metric.Episodes, "Episode cap should be shared by all goroutines")
	require.Equal(t, 4, metric.Goroutines)

	total := 0
	for _, visits := range m.Policy() {
		total += visits
	}
	require.Equal(t, 2000, total, "Merged policy should hold every episode")
	require.Len(t, m.Policy(), len(s.Moves))
}

func TestDecideMoveTreeReuse(t *testing.T) {
	g := game.NewTicTacToe()

	t.Run("continuing from the opponent's reply", func(t *testing.T) {
		m := NewMCTS(g, WithEpisodes(500), WithSeed(6), WithTreeReuse(), WithMetrics())
		s := g.Initial()

		move, metric, ok := m.DecideMove(context.Background(), s)
		require.True(t, ok)
		require.False(t, metric.IsTreeReused)

		s = g.Result(s, move)
		s = g.Result(s, s.Moves[0])
		_, metric, ok = m.DecideMove(context.Background(), s)

		require.True(t, ok)
		require.True(t, metric.IsTreeReused, "Reply should be found in the retained subtree")
		require.Nil(t, m.lastRoot.parent, "Reused root should be detached")
		require.Equal(t, s.Key(), m.lastRoot.state.Key())
		require.Greater(t, m.lastRoot.visits, 500, "Reused root should keep its statistics")
	})

	t.Run("building a new tree for an unknown state", func(t *testing.T) {
		m := NewMCTS(g, WithEpisodes(200), WithSeed(7), WithTreeReuse(), WithMetrics())
		m.DecideMove(context.Background(), g.Initial())

		s := play(g, game.Move{X: 3, Y: 3}, game.Move{X: 1, Y: 1}, game.Move{X: 3, Y: 1}, game.Move{X: 1, Y: 3})
		_, metric, _ := m.DecideMove(context.Background(), s)

		require.False(t, metric.IsTreeReused)
		require.Equal(t, 200, m.lastRoot.visits)
	})
}

func TestDecideMoveConvenience(t *testing.T) {
	g := game.NewTicTacToe()
	s := play(g, game.Move{X: 1, Y: 1}, game.Move{X: 2, Y: 1}, game.Move{X: 1, Y: 2}, game.Move{X: 2, Y: 2})

	move, ok := DecideMove(g, s, 200*time.Millisecond)

	require.True(t, ok)
	require.Equal(t, game.Move{X: 1, Y: 3}, move)
}

func TestDecideMoveLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, level := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	}()

	g := game.NewTicTacToe()
	for _, goroutines := range []int{1, 3} {
		buf.Reset()
		// No metrics collector, so the counts come from the search itself
		m := NewMCTS(g, WithEpisodes(40), WithGoroutines(goroutines), WithSeed(1))

		m.DecideMove(context.Background(), g.Initial())

		var entry struct {
			Message  string  `json:"message"`
			Episodes int     `json:"episodes"`
			Duration float64 `json:"duration"`
		}
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
		require.Equal(t, "search complete", entry.Message)
		require.Equal(t, 40, entry.Episodes, "Episodes should be counted with %d goroutines", goroutines)
		require.GreaterOrEqual(t, entry.Duration, 0.0)
	}
}
