package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/esports-results/models"
)

var (
	ErrEmptyBracket      = errors.New("bracket has no nodes")
	ErrNoRootNode        = errors.New("bracket has no root node")
	ErrMultipleRootNodes = errors.New("bracket has more than one root node in the main tree")
)

// Tree is the double-linked view of one bracket, assembled from flat node
// rows. Root is the finals node of the main bracket.
type Tree struct {
	Root  *models.BracketNode
	Nodes map[int]*models.BracketNode
}

// BuildTree links parent and child pointers between the stored nodes and
// locates the root of the main bracket. Side trees (losers bracket, third
// place) keep their links but do not contribute a root.
func BuildTree(nodes []*models.BracketNode) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyBracket
	}

	byID := make(map[int]*models.BracketNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	var root *models.BracketNode
	for _, node := range nodes {
		if node.ParentNodeID != nil {
			parent, ok := byID[*node.ParentNodeID]
			if !ok {
				return nil, fmt.Errorf("node %d references missing parent %d", node.ID, *node.ParentNodeID)
			}
			if node.ParentSlot == nil || (*node.ParentSlot != 1 && *node.ParentSlot != 2) {
				return nil, fmt.Errorf("node %d has invalid parent slot", node.ID)
			}
			node.Parent = parent
			if *node.ParentSlot == 1 {
				parent.Child1 = node
			} else {
				parent.Child2 = node
			}
			continue
		}
		if node.BracketType == models.BracketTypeMain {
			if root != nil {
				return nil, ErrMultipleRootNodes
			}
			root = node
		}
	}
	if root == nil {
		return nil, ErrNoRootNode
	}

	return &Tree{Root: root, Nodes: byID}, nil
}

// IsComplete reports whether the finals winner has been determined.
func (t *Tree) IsComplete() bool {
	return t.Root.WinnerID != nil
}

// Rounds groups the main-bracket nodes by round number in ascending order.
func (t *Tree) Rounds() [][]*models.BracketNode {
	byRound := make(map[int][]*models.BracketNode)
	for _, node := range t.Nodes {
		if node.BracketType != models.BracketTypeMain {
			continue
		}
		byRound[node.RoundNumber] = append(byRound[node.RoundNumber], node)
	}

	roundNumbers := make([]int, 0, len(byRound))
	for round := range byRound {
		roundNumbers = append(roundNumbers, round)
	}
	sort.Ints(roundNumbers)

	rounds := make([][]*models.BracketNode, 0, len(roundNumbers))
	for _, round := range roundNumbers {
		nodes := byRound[round]
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].MatchNumberInRound < nodes[j].MatchNumberInRound
		})
		rounds = append(rounds, nodes)
	}
	return rounds
}
