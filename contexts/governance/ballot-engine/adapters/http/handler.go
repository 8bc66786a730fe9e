package httpadapter

import (
	"context"
	"log/slog"

	"plenum/contexts/governance/ballot-engine/adapters/proxycall"
	httptransport "plenum/contexts/governance/ballot-engine/transport/http"
)

// Handler adapts transport DTOs to proxied ballot calls. Every operation
// goes through the upgrade proxy, so the handler keeps working across
// implementation swaps without redeploying the HTTP layer.
type Handler struct {
	Ballot proxycall.Client
	Logger *slog.Logger
}

func (h Handler) CreateSessionHandler(
	ctx context.Context,
	caller string,
	req httptransport.CreateSessionRequest,
) (httptransport.CreateSessionResponse, error) {
	reply, err := h.Ballot.CreateSession(ctx, caller, proxycall.CreateSessionParams{
		Name:          req.Name,
		ProposalNames: req.ProposalNames,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Kind:          req.Kind,
	})
	if err != nil {
		return httptransport.CreateSessionResponse{}, err
	}
	return httptransport.CreateSessionResponse{SessionID: reply.SessionID}, nil
}

func (h Handler) GrantPermissionHandler(
	ctx context.Context,
	sessionID uint64,
	caller string,
	req httptransport.GrantPermissionRequest,
) (httptransport.GrantPermissionResponse, error) {
	err := h.Ballot.GrantPermission(ctx, caller, proxycall.GrantPermissionParams{
		SessionID: sessionID,
		Principal: req.Principal,
	})
	if err != nil {
		return httptransport.GrantPermissionResponse{}, err
	}
	return httptransport.GrantPermissionResponse{
		SessionID: sessionID,
		Principal: req.Principal,
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	sessionID uint64,
	caller string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	reply, err := h.Ballot.CastVote(ctx, caller, proxycall.CastVoteParams{
		SessionID:    sessionID,
		ProposalName: req.ProposalName,
		Weight:       req.Weight,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		SessionID:        sessionID,
		ProposalIndex:    reply.ProposalIndex,
		CumulativeWeight: reply.CumulativeWeight,
	}, nil
}

func (h Handler) CloseSessionHandler(
	ctx context.Context,
	sessionID uint64,
	caller string,
) (httptransport.CloseSessionResponse, error) {
	reply, err := h.Ballot.CloseSession(ctx, caller, proxycall.CloseSessionParams{
		SessionID: sessionID,
	})
	if err != nil {
		return httptransport.CloseSessionResponse{}, err
	}
	return httptransport.CloseSessionResponse{
		SessionID:     sessionID,
		WinningIndex:  reply.WinningIndex,
		WinningWeight: reply.WinningWeight,
	}, nil
}

func (h Handler) GetSessionHandler(ctx context.Context, sessionID uint64, caller string) (httptransport.SessionResponse, error) {
	reply, err := h.Ballot.GetSession(ctx, caller, sessionID)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return sessionResponse(reply), nil
}

func (h Handler) ListSessionsHandler(ctx context.Context, caller string, creator string) (httptransport.SessionListResponse, error) {
	var (
		reply proxycall.SessionListReply
		err   error
	)
	if creator != "" {
		reply, err = h.Ballot.SessionsOfCreator(ctx, caller, creator)
	} else {
		reply, err = h.Ballot.ListSessions(ctx, caller)
	}
	if err != nil {
		return httptransport.SessionListResponse{}, err
	}
	sessions := make([]httptransport.SessionResponse, 0, len(reply.Sessions))
	for _, session := range reply.Sessions {
		sessions = append(sessions, sessionResponse(session))
	}
	return httptransport.SessionListResponse{Sessions: sessions}, nil
}

func (h Handler) WinnerHandler(ctx context.Context, sessionID uint64, caller string) (httptransport.WinnerResponse, error) {
	reply, err := h.Ballot.WinningProposal(ctx, caller, sessionID)
	if err != nil {
		return httptransport.WinnerResponse{}, err
	}
	return httptransport.WinnerResponse{
		SessionID: reply.SessionID,
		Index:     reply.Index,
		Name:      reply.Name,
		Weight:    reply.Weight,
	}, nil
}

func (h Handler) VotedProposalsHandler(ctx context.Context, caller string, principal string) (httptransport.AuditResponse, error) {
	reply, err := h.Ballot.VotedProposals(ctx, caller, principal)
	if err != nil {
		return httptransport.AuditResponse{}, err
	}
	return auditResponse(principal, reply), nil
}

func (h Handler) UnvotedProposalsHandler(ctx context.Context, caller string, principal string) (httptransport.AuditResponse, error) {
	reply, err := h.Ballot.UnvotedProposals(ctx, caller, principal)
	if err != nil {
		return httptransport.AuditResponse{}, err
	}
	return auditResponse(principal, reply), nil
}

func sessionResponse(reply proxycall.SessionReply) httptransport.SessionResponse {
	proposals := make([]httptransport.ProposalResponse, 0, len(reply.Proposals))
	for _, proposal := range reply.Proposals {
		proposals = append(proposals, httptransport.ProposalResponse{
			Name:      proposal.Name,
			VoteCount: proposal.VoteCount,
		})
	}
	return httptransport.SessionResponse{
		SessionID:  reply.SessionID,
		Name:       reply.Name,
		Creator:    reply.Creator,
		Kind:       reply.Kind,
		Proposals:  proposals,
		StartTime:  reply.StartTime,
		EndTime:    reply.EndTime,
		Opening:    reply.Opening,
		Closed:     reply.Closed,
		TotalVotes: reply.TotalVotes,
	}
}

func auditResponse(principal string, reply proxycall.ProposalViewListReply) httptransport.AuditResponse {
	proposals := make([]httptransport.AuditProposalResponse, 0, len(reply.Proposals))
	for _, view := range reply.Proposals {
		proposals = append(proposals, httptransport.AuditProposalResponse{
			SessionID:        view.SessionID,
			ProposalIndex:    view.ProposalIndex,
			Name:             view.Name,
			CumulativeWeight: view.CumulativeWeight,
			SessionKind:      view.SessionKind,
		})
	}
	return httptransport.AuditResponse{
		Principal: principal,
		Proposals: proposals,
	}
}
