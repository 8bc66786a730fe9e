package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateSessionRequest struct {
	Name          string   `json:"name"`
	ProposalNames []string `json:"proposal_names"`
	StartTime     int64    `json:"start_time"`
	EndTime       int64    `json:"end_time"`
	Kind          string   `json:"kind"`
}

type CreateSessionResponse struct {
	SessionID uint64 `json:"session_id"`
}

type GrantPermissionRequest struct {
	Principal string `json:"principal"`
}

type GrantPermissionResponse struct {
	SessionID uint64 `json:"session_id"`
	Principal string `json:"principal"`
}

type CastVoteRequest struct {
	ProposalName string `json:"proposal_name"`
	Weight       uint64 `json:"weight"`
}

type CastVoteResponse struct {
	SessionID        uint64 `json:"session_id"`
	ProposalIndex    int    `json:"proposal_index"`
	CumulativeWeight uint64 `json:"cumulative_weight"`
}

type CloseSessionResponse struct {
	SessionID     uint64 `json:"session_id"`
	WinningIndex  int    `json:"winning_index"`
	WinningWeight uint64 `json:"winning_weight"`
}

type ProposalResponse struct {
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type SessionResponse struct {
	SessionID  uint64             `json:"session_id"`
	Name       string             `json:"name"`
	Creator    string             `json:"creator"`
	Kind       string             `json:"kind"`
	Proposals  []ProposalResponse `json:"proposals"`
	StartTime  int64              `json:"start_time"`
	EndTime    int64              `json:"end_time"`
	Opening    bool               `json:"opening"`
	Closed     bool               `json:"closed"`
	TotalVotes uint64             `json:"total_votes"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type WinnerResponse struct {
	SessionID uint64 `json:"session_id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Weight    uint64 `json:"weight"`
}

type AuditProposalResponse struct {
	SessionID        uint64 `json:"session_id"`
	ProposalIndex    int    `json:"proposal_index"`
	Name             string `json:"name"`
	CumulativeWeight uint64 `json:"cumulative_weight"`
	SessionKind      string `json:"session_kind"`
}

type AuditResponse struct {
	Principal string                  `json:"principal"`
	Proposals []AuditProposalResponse `json:"proposals"`
}
