package entities

import "time"

type SessionKind string

const (
	SessionKindNormal   SessionKind = "normal"
	SessionKindOfficial SessionKind = "official"
)

func KnownKind(kind SessionKind) bool {
	return kind == SessionKindNormal || kind == SessionKindOfficial
}

// Proposal is one option inside a session. VoterWeights accumulates each
// principal's total contribution to this proposal; it never decreases.
type Proposal struct {
	Name         string            `json:"name"`
	VoteCount    uint64            `json:"vote_count"`
	VoterWeights map[string]uint64 `json:"voter_weights"`
}

// VotingSession is one voting round. The proposal list is fixed at
// creation; sessions are never deleted and ids are dense and never reused.
// StartTime and EndTime are advisory: creation checks StartTime < EndTime
// once, and nothing compares them against the clock afterwards. Voting is
// gated only by Opening and Closed.
type VotingSession struct {
	SessionID  uint64      `json:"session_id"`
	Name       string      `json:"name"`
	Creator    string      `json:"creator"`
	Kind       SessionKind `json:"kind"`
	Proposals  []Proposal  `json:"proposals"`
	StartTime  int64       `json:"start_time"`
	EndTime    int64       `json:"end_time"`
	Opening    bool        `json:"opening"`
	Closed     bool        `json:"closed"`
	TotalVotes uint64      `json:"total_votes"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// FindProposalIndex scans in order and returns the first proposal with the
// given name. Duplicate names are allowed; later duplicates are simply
// unreachable by name.
func (s VotingSession) FindProposalIndex(name string) (int, bool) {
	for i := range s.Proposals {
		if s.Proposals[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// WinningProposal returns the index and count of the proposal with the
// strictly greatest vote count, the lowest index winning ties. With no
// votes cast it reports index 0 and weight 0, so callers must check the
// weight to tell a real win from the default.
func (s VotingSession) WinningProposal() (int, uint64) {
	winningIndex := 0
	var winningWeight uint64
	for i := range s.Proposals {
		if s.Proposals[i].VoteCount > winningWeight {
			winningWeight = s.Proposals[i].VoteCount
			winningIndex = i
		}
	}
	return winningIndex, winningWeight
}

// CumulativeWeight is the principal's accumulated weight on the proposal
// at the given index.
func (s VotingSession) CumulativeWeight(proposalIndex int, principal string) uint64 {
	if proposalIndex < 0 || proposalIndex >= len(s.Proposals) {
		return 0
	}
	return s.Proposals[proposalIndex].VoterWeights[principal]
}

// ProposalView is one row of the per-principal audit read model.
type ProposalView struct {
	SessionID        uint64      `json:"session_id"`
	ProposalIndex    int         `json:"proposal_index"`
	Name             string      `json:"name"`
	CumulativeWeight uint64      `json:"cumulative_weight"`
	SessionKind      SessionKind `json:"session_kind"`
}
