package proxycall

import (
	"encoding/json"
	"errors"
)

// ErrUnknownOperation is returned when the input names no ballot operation.
var ErrUnknownOperation = errors.New("unknown ballot operation")

// Operation names carried on the wire. The proxy never inspects these; only
// the implementation behind it does.
const (
	OpCreateSession     = "ballot.create_session"
	OpGrantPermission   = "ballot.grant_permission"
	OpCastVote          = "ballot.cast_vote"
	OpCloseSession      = "ballot.close_session"
	OpGetSession        = "ballot.get_session"
	OpListSessions      = "ballot.list_sessions"
	OpSessionsOfCreator = "ballot.sessions_of_creator"
	OpSessionCount      = "ballot.session_count"
	OpWinningProposal   = "ballot.winning_proposal"
	OpVotedProposals    = "ballot.voted_proposals"
	OpUnvotedProposals  = "ballot.unvoted_proposals"
)

// Request is the byte envelope a caller hands to the proxy. The caller
// identity travels out of band on the forwarded call, never in the payload.
type Request struct {
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

func EncodeRequest(op string, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{Op: op, Params: raw})
}

func DecodeRequest(input []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(input, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

type CreateSessionParams struct {
	Name          string   `json:"name"`
	ProposalNames []string `json:"proposal_names"`
	StartTime     int64    `json:"start_time"`
	EndTime       int64    `json:"end_time"`
	Kind          string   `json:"kind"`
}

type CreateSessionReply struct {
	SessionID uint64 `json:"session_id"`
}

type GrantPermissionParams struct {
	SessionID uint64 `json:"session_id"`
	Principal string `json:"principal"`
}

type GrantPermissionReply struct {
	SessionID uint64 `json:"session_id"`
	Principal string `json:"principal"`
}

type CastVoteParams struct {
	SessionID    uint64 `json:"session_id"`
	ProposalName string `json:"proposal_name"`
	Weight       uint64 `json:"weight"`
}

type CastVoteReply struct {
	ProposalIndex    int    `json:"proposal_index"`
	CumulativeWeight uint64 `json:"cumulative_weight"`
}

type CloseSessionParams struct {
	SessionID uint64 `json:"session_id"`
}

type CloseSessionReply struct {
	WinningIndex  int    `json:"winning_index"`
	WinningWeight uint64 `json:"winning_weight"`
}

type SessionRefParams struct {
	SessionID uint64 `json:"session_id"`
}

type CreatorParams struct {
	Creator string `json:"creator"`
}

type PrincipalParams struct {
	Principal string `json:"principal"`
}

type SessionCountReply struct {
	Count uint64 `json:"count"`
}

type WinnerReply struct {
	SessionID uint64 `json:"session_id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Weight    uint64 `json:"weight"`
}

type ProposalSummary struct {
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type SessionReply struct {
	SessionID  uint64            `json:"session_id"`
	Name       string            `json:"name"`
	Creator    string            `json:"creator"`
	Kind       string            `json:"kind"`
	Proposals  []ProposalSummary `json:"proposals"`
	StartTime  int64             `json:"start_time"`
	EndTime    int64             `json:"end_time"`
	Opening    bool              `json:"opening"`
	Closed     bool              `json:"closed"`
	TotalVotes uint64            `json:"total_votes"`
}

type SessionListReply struct {
	Sessions []SessionReply `json:"sessions"`
}

type ProposalViewReply struct {
	SessionID        uint64 `json:"session_id"`
	ProposalIndex    int    `json:"proposal_index"`
	Name             string `json:"name"`
	CumulativeWeight uint64 `json:"cumulative_weight"`
	SessionKind      string `json:"session_kind"`
}

type ProposalViewListReply struct {
	Proposals []ProposalViewReply `json:"proposals"`
}
