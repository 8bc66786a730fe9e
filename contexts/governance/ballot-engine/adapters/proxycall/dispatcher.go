package proxycall

import (
	"context"
	"encoding/json"
	"log/slog"

	"plenum/contexts/governance/ballot-engine/adapters/state"
	"plenum/contexts/governance/ballot-engine/application/commands"
	"plenum/contexts/governance/ballot-engine/application/queries"
	"plenum/contexts/governance/ballot-engine/domain/entities"
	"plenum/contexts/governance/ballot-engine/ports"
	"plenum/internal/shared/upgradeproxy"
)

// Backend lets a deployment rebind the engine's ports to durable adapters.
// Any nil field falls back to the slot store over the proxy-owned handle,
// which is the default that makes implementation swaps preserve tallies.
type Backend struct {
	Sessions    ports.SessionRepository
	Permissions ports.PermissionLedger
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
}

// Dispatcher is one deployable version of the ballot logic. It holds no
// session state of its own: every Execute binds its stores fresh, so the
// logic behind the proxy address can be swapped without moving state.
type Dispatcher struct {
	Directory ports.RoleDirectory
	Backend   Backend
	Logger    *slog.Logger
}

var _ upgradeproxy.Implementation = Dispatcher{}

// Execute decodes the forwarded bytes, runs the named operation as the
// forwarded caller, and returns the reply bytes. Domain errors return as-is
// so the caller sees exactly what a direct invocation would produce.
func (d Dispatcher) Execute(ctx context.Context, handle *upgradeproxy.StateStore, call upgradeproxy.Call) ([]byte, error) {
	req, err := DecodeRequest(call.Input)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(handle)
	sessions := d.Backend.Sessions
	if sessions == nil {
		sessions = store
	}
	permissions := d.Backend.Permissions
	if permissions == nil {
		permissions = store
	}
	outbox := d.Backend.Outbox
	if outbox == nil {
		outbox = store
	}
	clock := d.Backend.Clock
	if clock == nil {
		clock = store
	}
	idGen := d.Backend.IDGen
	if idGen == nil {
		idGen = store
	}

	useCase := commands.SessionUseCase{
		Sessions:    sessions,
		Permissions: permissions,
		Directory:   d.Directory,
		Outbox:      outbox,
		Clock:       clock,
		IDGen:       idGen,
		Logger:      d.Logger,
	}
	sessionQueries := queries.SessionQueries{Sessions: sessions}
	auditQueries := queries.AuditQueries{Sessions: sessions, Directory: d.Directory}

	switch req.Op {
	case OpCreateSession:
		var params CreateSessionParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		result, err := useCase.CreateSession(ctx, commands.CreateSessionCommand{
			Creator:       call.Caller,
			Name:          params.Name,
			ProposalNames: params.ProposalNames,
			StartTime:     params.StartTime,
			EndTime:       params.EndTime,
			Kind:          entities.SessionKind(params.Kind),
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(CreateSessionReply{SessionID: result.SessionID})

	case OpGrantPermission:
		var params GrantPermissionParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		err := useCase.GrantVotingPermission(ctx, commands.GrantPermissionCommand{
			SessionID: params.SessionID,
			Principal: params.Principal,
			Caller:    call.Caller,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(GrantPermissionReply{
			SessionID: params.SessionID,
			Principal: params.Principal,
		})

	case OpCastVote:
		var params CastVoteParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		result, err := useCase.CastVote(ctx, commands.CastVoteCommand{
			SessionID:    params.SessionID,
			ProposalName: params.ProposalName,
			Weight:       params.Weight,
			Caller:       call.Caller,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(CastVoteReply{
			ProposalIndex:    result.ProposalIndex,
			CumulativeWeight: result.CumulativeWeight,
		})

	case OpCloseSession:
		var params CloseSessionParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		result, err := useCase.CloseSession(ctx, commands.CloseSessionCommand{
			SessionID: params.SessionID,
			Caller:    call.Caller,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(CloseSessionReply{
			WinningIndex:  result.WinningIndex,
			WinningWeight: result.WinningWeight,
		})

	case OpGetSession:
		var params SessionRefParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		session, err := sessionQueries.GetSession(ctx, params.SessionID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionReply(session))

	case OpListSessions:
		sessions, err := sessionQueries.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionListReply(sessions))

	case OpSessionsOfCreator:
		var params CreatorParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		sessions, err := sessionQueries.SessionsOfCreator(ctx, params.Creator)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sessionListReply(sessions))

	case OpSessionCount:
		count, err := sessions.SessionCount(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(SessionCountReply{Count: count})

	case OpWinningProposal:
		var params SessionRefParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		winner, err := sessionQueries.WinningProposal(ctx, params.SessionID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(WinnerReply{
			SessionID: winner.SessionID,
			Index:     winner.Index,
			Name:      winner.Name,
			Weight:    winner.Weight,
		})

	case OpVotedProposals:
		return d.auditReply(ctx, auditQueries.VotedProposalsOf, req.Params)

	case OpUnvotedProposals:
		return d.auditReply(ctx, auditQueries.UnvotedProposalsOf, req.Params)

	default:
		return nil, ErrUnknownOperation
	}
}

func (d Dispatcher) auditReply(
	ctx context.Context,
	query func(context.Context, string) ([]entities.ProposalView, error),
	rawParams json.RawMessage,
) ([]byte, error) {
	var params PrincipalParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, err
	}
	views, err := query(ctx, params.Principal)
	if err != nil {
		return nil, err
	}
	reply := ProposalViewListReply{Proposals: make([]ProposalViewReply, 0, len(views))}
	for _, view := range views {
		reply.Proposals = append(reply.Proposals, ProposalViewReply{
			SessionID:        view.SessionID,
			ProposalIndex:    view.ProposalIndex,
			Name:             view.Name,
			CumulativeWeight: view.CumulativeWeight,
			SessionKind:      string(view.SessionKind),
		})
	}
	return json.Marshal(reply)
}

func sessionReply(session entities.VotingSession) SessionReply {
	proposals := make([]ProposalSummary, 0, len(session.Proposals))
	for _, proposal := range session.Proposals {
		proposals = append(proposals, ProposalSummary{
			Name:      proposal.Name,
			VoteCount: proposal.VoteCount,
		})
	}
	return SessionReply{
		SessionID:  session.SessionID,
		Name:       session.Name,
		Creator:    session.Creator,
		Kind:       string(session.Kind),
		Proposals:  proposals,
		StartTime:  session.StartTime,
		EndTime:    session.EndTime,
		Opening:    session.Opening,
		Closed:     session.Closed,
		TotalVotes: session.TotalVotes,
	}
}

func sessionListReply(sessions []entities.VotingSession) SessionListReply {
	reply := SessionListReply{Sessions: make([]SessionReply, 0, len(sessions))}
	for _, session := range sessions {
		reply.Sessions = append(reply.Sessions, sessionReply(session))
	}
	return reply
}
