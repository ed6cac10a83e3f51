package agent

import (
	"context"
	"math"

	"kinarow/game"
	"kinarow/metrics"
	"kinarow/searcher"

	"golang.org/x/exp/rand"
)

type samplingAgent struct {
	mcts        *searcher.MCTS
	temperature float64
	rng         *rand.Rand
}

// NewSamplingAgent returns an agent drawing its move from the root visit
// counts of each search, sharpened by 1/temperature. Lower temperatures
// approach the evaluation agent, useful for varied self-play.
func NewSamplingAgent(mcts *searcher.MCTS, temperature float64, seed uint64) Agent {
	if temperature <= 0 {
		temperature = 1
	}
	return &samplingAgent{mcts: mcts, temperature: temperature, rng: rand.New(rand.NewSource(seed))}
}

func (a *samplingAgent) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	move, metric, ok := a.mcts.DecideMove(ctx, state)
	if !ok {
		return move, metric, false
	}
	policy := adjustTemperature(state.Moves, a.mcts.Policy(), a.temperature)
	if sampled, ok := sample(state.Moves, policy, a.rng.Float64()); ok {
		move = sampled
	}
	return move, metric, true
}

// adjustTemperature turns visit counts into move probabilities
func adjustTemperature(moves []game.Move, visits map[game.Move]int, temperature float64) map[game.Move]float64 {
	exponent := 1.0 / temperature
	sum := 0.0
	adjusted := make(map[game.Move]float64, len(visits))
	for _, move := range moves {
		prob := math.Pow(float64(visits[move]), exponent)
		sum += prob
		adjusted[move] = prob
	}
	if sum == 0 {
		return adjusted
	}
	for move := range adjusted {
		adjusted[move] /= sum
	}
	return adjusted
}

// sample walks moves in order so that a fixed draw picks a fixed move
func sample(moves []game.Move, policy map[game.Move]float64, draw float64) (game.Move, bool) {
	cumulative := 0.0
	var last game.Move
	found := false
	for _, move := range moves {
		prob := policy[move]
		if prob == 0 {
			continue
		}
		last, found = move, true
		cumulative += prob
		if draw < cumulative {
			return move, true
		}
	}
	return last, found // Rounding errors
}
