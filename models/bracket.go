package models

type BracketType string

const (
	BracketTypeMain       BracketType = "main"
	BracketTypeLosers     BracketType = "losers"
	BracketTypeThirdPlace BracketType = "third_place"
)

// BracketNode is one slot in the elimination tree. The tree is generated when
// the bracket is created; after that only participant/winner fields mutate,
// one level per completed match.
type BracketNode struct {
	ID                 int         `json:"id"`
	BracketID          int         `json:"bracket_id"`
	Position           int         `json:"position"`
	RoundNumber        int         `json:"round_number"`
	MatchNumberInRound int         `json:"match_number_in_round"`
	Participant1ID     *int        `json:"participant1_id,omitempty"`
	Participant1Name   *string     `json:"participant1_name,omitempty"`
	Participant2ID     *int        `json:"participant2_id,omitempty"`
	Participant2Name   *string     `json:"participant2_name,omitempty"`
	WinnerID           *int        `json:"winner_id,omitempty"`
	IsBye              bool        `json:"is_bye"`
	BracketType        BracketType `json:"bracket_type"`
	ParentNodeID       *int        `json:"parent_node_id,omitempty"`
	ParentSlot         *int        `json:"parent_slot,omitempty"` // 1 or 2
	Child1NodeID       *int        `json:"child1_node_id,omitempty"`
	Child2NodeID       *int        `json:"child2_node_id,omitempty"`
	MatchID            *int        `json:"match_id,omitempty"`

	// Link fields populated by brackets.BuildTree, never persisted.
	Parent *BracketNode `json:"-"`
	Child1 *BracketNode `json:"-"`
	Child2 *BracketNode `json:"-"`
}

// ReadyForMatch reports whether the node can be played: both slots populated,
// or a bye with its single participant present.
func (n *BracketNode) ReadyForMatch() bool {
	if n.IsBye {
		return n.Participant1ID != nil || n.Participant2ID != nil
	}
	return n.Participant1ID != nil && n.Participant2ID != nil
}

// ParticipantName returns the stored display name for the given participant
// id, or nil if the participant does not occupy a slot of this node.
func (n *BracketNode) ParticipantName(participantID int) *string {
	if n.Participant1ID != nil && *n.Participant1ID == participantID {
		return n.Participant1Name
	}
	if n.Participant2ID != nil && *n.Participant2ID == participantID {
		return n.Participant2Name
	}
	return nil
}
