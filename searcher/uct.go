package searcher

import "math"

// uctValue scores a child for selection:
// score/n + c*sqrt(ln(N)/n), +Inf for unvisited children
func uctValue(parentVisits int, score float64, visits int, c float64) float64 {
	// Prioritize unexplored nodes
	if visits == 0 || parentVisits == 0 {
		return math.Inf(1)
	}

	n := float64(visits)
	return score/n + c*math.Sqrt(math.Log(float64(parentVisits))/n)
}

// findBestNodeWithUCT returns the first child maximizing uctValue
func findBestNodeWithUCT(node *Node, c float64) *Node {
	var best *Node
	bestValue := math.Inf(-1)
	for _, child := range node.children {
		value := uctValue(node.visits, child.score, child.visits, c)
		if value == math.Inf(1) {
			return child
		}
		if best == nil || value > bestValue {
			best = child
			bestValue = value
		}
	}
	return best
}

// selectNode descends from root until it reaches a node without children
func selectNode(root *Node, c float64) *Node {
	node := root
	for len(node.children) > 0 {
		node = findBestNodeWithUCT(node, c)
	}
	return node
}
