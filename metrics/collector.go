package metrics

import (
	"sync/atomic"
	"time"

	"kinarow/game"
)

type SearchMetric struct {
	Goroutines   int
	Exploration  float64
	Duration     time.Duration
	Episodes     int
	FullPlayouts int // Rollouts that started from a non-terminal state
	FastWins     int // Simulations resolved by the node's own winning move
	IsTreeReused bool
}

type MoveMetric struct {
	Step   int
	Player game.Player
	Move   game.Move
	SearchMetric
}

type GameMetric struct {
	StartingPlayer game.Player
	Winner         game.Player // game.None on a tie
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
}

// Collector gathers search statistics. Implementations are safe for use by
// concurrent search goroutines.
type Collector interface {
	Start(goroutines int, exploration float64)
	SetTreeReused(value bool)
	AddFullPlayout()
	AddFastWin()
	AddEpisode()
	Complete() SearchMetric
}

type collector struct {
	goroutines   int
	exploration  float64
	startTime    time.Time
	episodes     atomic.Int64
	fullPlayouts atomic.Int64
	fastWins     atomic.Int64
	isTreeReused atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

// Start resets the counters for a new search
func (m *collector) Start(goroutines int, exploration float64) {
	m.startTime = time.Now()
	m.goroutines = goroutines
	m.exploration = exploration
	m.episodes.Store(0)
	m.fullPlayouts.Store(0)
	m.fastWins.Store(0)
}

func (m *collector) SetTreeReused(value bool) {
	m.isTreeReused.Store(value)
}

func (m *collector) AddFullPlayout() {
	m.fullPlayouts.Add(1)
}

func (m *collector) AddFastWin() {
	m.fastWins.Add(1)
}

func (m *collector) AddEpisode() {
	m.episodes.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Goroutines:   m.goroutines,
		Exploration:  m.exploration,
		Duration:     time.Since(m.startTime),
		Episodes:     int(m.episodes.Load()),
		FullPlayouts: int(m.fullPlayouts.Load()),
		FastWins:     int(m.fastWins.Load()),
		IsTreeReused: m.isTreeReused.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(goroutines int, exploration float64) {}
func (m *dummyCollector) SetTreeReused(value bool)                  {}
func (m *dummyCollector) AddFullPlayout()                           {}
func (m *dummyCollector) AddFastWin()                               {}
func (m *dummyCollector) AddEpisode()                               {}
func (m *dummyCollector) Complete() SearchMetric                    { return SearchMetric{} }
