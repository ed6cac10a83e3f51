package searcher

import (
	"context"
	"sync/atomic"
	"time"

	"kinarow/game"
	"kinarow/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

type Option func(m *MCTS)

type MCTS struct {
	game        game.Game
	goroutines  int
	duration    time.Duration
	episodes    int
	exploration float64
	reuse       bool
	rng         *rand.Rand
	metrics     metrics.Collector

	lastRoot *Node             // Root of the most recent search
	retained *Node             // Chosen child kept for tree reuse
	policy   map[game.Move]int // Root visits per move of the most recent search
}

// WithDuration sets the wall-clock budget of each search
func WithDuration(duration time.Duration) Option {
	return func(m *MCTS) {
		if duration > 0 {
			m.duration = duration
		}
	}
}

// WithEpisodes caps the number of episodes of each search, shared by all
// goroutines
func WithEpisodes(episodes int) Option {
	return func(m *MCTS) {
		if episodes > 0 {
			m.episodes = episodes
		}
	}
}

// WithGoroutines searches that many independent trees and sums their root
// visit counts
func WithGoroutines(goroutines int) Option {
	return func(m *MCTS) {
		if goroutines > 0 {
			m.goroutines = goroutines
		}
	}
}

func WithExploration(c float64) Option {
	return func(m *MCTS) {
		if c >= 0 {
			m.exploration = c
		}
	}
}

// WithSeed makes searches reproducible
func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		if seed != 0 {
			m.rng = rand.New(rand.NewSource(seed))
		}
	}
}

// WithTreeReuse keeps the subtree of the chosen move between searches.
// Only honoured with a single goroutine.
func WithTreeReuse() Option {
	return func(m *MCTS) {
		m.reuse = true
	}
}

func WithMetrics() Option {
	return func(m *MCTS) {
		m.metrics = metrics.NewCollector()
	}
}

func NewMCTS(g game.Game, options ...Option) *MCTS {
	m := &MCTS{ // Default values
		game:        g,
		goroutines:  1,
		exploration: Exploration,
		metrics:     metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	if m.episodes <= 0 && m.duration <= 0 {
		m.duration = DefaultDuration
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	if m.goroutines > 1 {
		m.reuse = false
	}
	return m
}

// DecideMove searches from state until the budget is spent or ctx is done
// and returns the move of the most visited root child. ok is false when the
// root has no children, in which case move is the root's own placeholder
// move and no legal move is available.
func (m *MCTS) DecideMove(ctx context.Context, state game.State) (move game.Move, metric metrics.SearchMetric, ok bool) {
	m.metrics.Start(m.goroutines, m.exploration)

	start := time.Now()
	b := &budget{}
	if m.duration > 0 {
		b.deadline = start.Add(m.duration)
	}
	if m.episodes > 0 {
		b.capped = true
		b.remaining.Store(int64(m.episodes))
	}

	if m.goroutines > 1 {
		move, ok = m.searchParallel(ctx, state, b)
	} else {
		move, ok = m.searchSequential(ctx, state, b)
	}
	metric = m.metrics.Complete()

	log.Debug().
		Str("player", string(state.ToMove)).
		Str("move", move.String()).
		Bool("ok", ok).
		Int64("episodes", b.done.Load()).
		Dur("duration", time.Since(start)).
		Msg("search complete")
	return move, metric, ok
}

// Policy returns the root visit count of every move of the most recent
// search
func (m *MCTS) Policy() map[game.Move]int {
	return m.policy
}

func (m *MCTS) searchSequential(ctx context.Context, state game.State, b *budget) (game.Move, bool) {
	root := m.findRoot(state)
	m.newTree(root).search(ctx, b)

	m.lastRoot = root
	m.policy = root.Policy()
	best := root.maxVisitsChild()
	if best == root {
		m.retained = nil
		return root.state.Move, false
	}
	if m.reuse {
		m.retained = best
	}
	return best.state.Move, true
}

func (m *MCTS) searchParallel(ctx context.Context, state game.State, b *budget) (game.Move, bool) {
	m.metrics.SetTreeReused(false)
	roots := make([]*Node, m.goroutines)
	group, ctx := errgroup.WithContext(ctx)
	for i := range roots {
		roots[i] = newNode(nil, state)
		t := m.newTree(roots[i])
		group.Go(func() error {
			t.search(ctx, b)
			return nil
		})
	}
	_ = group.Wait()

	// Every expanded root lists the same moves in the same order
	reference := roots[0]
	for _, root := range roots {
		if len(root.children) > 0 {
			reference = root
			break
		}
	}
	m.lastRoot = reference
	m.retained = nil
	m.policy = map[game.Move]int{}
	if len(reference.children) == 0 {
		return reference.state.Move, false
	}

	best, bestVisits := 0, -1
	for i, child := range reference.children {
		visits := 0
		for _, root := range roots {
			if i < len(root.children) {
				visits += root.children[i].visits
			}
		}
		m.policy[child.state.Move] = visits
		if visits > bestVisits {
			best, bestVisits = i, visits
		}
	}
	return reference.children[best].state.Move, true
}

// findRoot reuses the retained subtree when one of its nodes, the retained
// node itself or up to two plies below it, matches state
func (m *MCTS) findRoot(state game.State) *Node {
	if m.reuse && m.retained != nil {
		if node := lookup(m.retained, state.Key(), 2); node != nil {
			node.parent = nil
			m.metrics.SetTreeReused(true)
			return node
		}
		log.Debug().Msg("no retained node matches the state, building a new tree")
	}
	m.metrics.SetTreeReused(false)
	return newNode(nil, state)
}

func lookup(node *Node, key string, depth int) *Node {
	if node.state.Key() == key {
		return node
	}
	if depth == 0 {
		return nil
	}
	for _, child := range node.children {
		if found := lookup(child, key, depth-1); found != nil {
			return found
		}
	}
	return nil
}

// DecideMove runs a single search with the given time budget
func DecideMove(g game.Game, state game.State, duration time.Duration) (game.Move, bool) {
	move, _, ok := NewMCTS(g, WithDuration(duration)).DecideMove(context.Background(), state)
	return move, ok
}

// budget ends a search at its deadline, after its episode cap or when the
// context is done, whichever comes first
type budget struct {
	deadline  time.Time
	capped    bool
	remaining atomic.Int64
	done      atomic.Int64 // Episodes completed by all goroutines
}

func (b *budget) next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !b.deadline.IsZero() && !time.Now().Before(b.deadline) {
		return false
	}
	return !b.capped || b.remaining.Add(-1) >= 0
}

// tree is the search state of one goroutine
type tree struct {
	game        game.Game
	root        *Node
	player      game.Player // Root player to move; outcomes are read from this side
	exploration float64
	rng         *rand.Rand
	metrics     metrics.Collector
}

func (m *MCTS) newTree(root *Node) *tree {
	return &tree{
		game:        m.game,
		root:        root,
		player:      root.state.ToMove,
		exploration: m.exploration,
		rng:         rand.New(rand.NewSource(m.rng.Uint64())),
		metrics:     m.metrics,
	}
}

func (t *tree) search(ctx context.Context, b *budget) {
	for b.next(ctx) {
		t.episode()
		b.done.Add(1)
	}
}

// episode runs one select, expand, simulate and backpropagate pass
func (t *tree) episode() {
	leaf := selectNode(t.root, t.exploration)

	node := leaf
	if !t.game.TerminalTest(leaf.state) {
		expandNode(t.game, leaf)
		if len(leaf.children) > 0 {
			node = leaf.children[t.rng.Intn(len(leaf.children))]
		}
	}

	winner := t.simulate(node)
	backPropagation(t.game, node, winner)
	t.metrics.AddEpisode()
}

// expandNode adds one child per legal move of node. A node is expanded at
// most once.
func expandNode(g game.Game, node *Node) {
	if node.expanded {
		return
	}
	node.expanded = true
	for _, move := range g.Actions(node.state) {
		node.children = append(node.children, newNode(node, g.Result(node.state, move)))
	}
}

// backPropagation records one visit on node and each of its ancestors. The
// mover into a node earns Win if it won and Loss if it lost; ties add no
// score.
func backPropagation(g game.Game, node *Node, winner game.Player) {
	for n := node; n != nil; n = n.parent {
		n.visits++
		if winner == game.None {
			continue
		}
		mover := g.SwitchPlayer(n.state.ToMove)
		if mover == winner {
			n.score += Win
		} else if mover == g.SwitchPlayer(winner) {
			n.score += Loss
		}
	}
}
