package searcher

import (
	"math"
	"time"
)

// Hyperparameters for MCTS

const Exploration = math.Sqrt2 // Default UCT exploration constant

const Win = 1.0  // Reward for the mover of a winning move
const Loss = 0.5 // Partial reward for the mover of a lost, contested outcome

const DefaultDuration = 4 * time.Second
