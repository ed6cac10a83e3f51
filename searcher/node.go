package searcher

import (
	"kinarow/game"
)

// Node is a search tree node. A tree is owned by the single goroutine
// searching it; parent is a non-owning back pointer used for backups.
type Node struct {
	state    game.State
	parent   *Node
	children []*Node
	expanded bool
	visits   int
	score    float64
}

// newNode wraps a private copy of state
func newNode(parent *Node, state game.State) *Node {
	return &Node{
		state:  state.Copy(),
		parent: parent,
	}
}

func (n *Node) State() game.State {
	return n.state
}

func (n *Node) Visits() int {
	return n.visits
}

func (n *Node) Score() float64 {
	return n.score
}

func (n *Node) Children() []*Node {
	return n.children
}

// maxVisitsChild returns the most visited child, the first one on ties, or
// n itself when it has no children
func (n *Node) maxVisitsChild() *Node {
	if len(n.children) == 0 {
		return n
	}

	best := n.children[0]
	for _, child := range n.children[1:] {
		if child.visits > best.visits {
			best = child
		}
	}
	return best
}

// Policy returns the visit count of each child by move
func (n *Node) Policy() map[game.Move]int {
	policy := make(map[game.Move]int, len(n.children))
	for _, child := range n.children {
		policy[child.state.Move] = child.visits
	}
	return policy
}
