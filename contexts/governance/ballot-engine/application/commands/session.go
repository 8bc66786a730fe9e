package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "plenum/contexts/governance/ballot-engine/application"
	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"
)

// CreateSessionCommand is the write-model input for session creation.
type CreateSessionCommand struct {
	Creator       string
	Name          string
	ProposalNames []string
	StartTime     int64
	EndTime       int64
	Kind          entities.SessionKind
}

type CreateSessionResult struct {
	SessionID uint64
}

// GrantPermissionCommand allows a principal to vote in a restricted session.
type GrantPermissionCommand struct {
	SessionID uint64
	Principal string
	Caller    string
}

// CastVoteCommand adds weight to one proposal on behalf of the caller.
type CastVoteCommand struct {
	SessionID    uint64
	ProposalName string
	Weight       uint64
	Caller       string
}

// CastVoteResult returns the matched proposal index and the caller's new
// cumulative weight on it.
type CastVoteResult struct {
	ProposalIndex    int
	CumulativeWeight uint64
}

// CloseSessionCommand irreversibly closes a session.
type CloseSessionCommand struct {
	SessionID uint64
	Caller    string
}

type CloseSessionResult struct {
	WinningIndex  int
	WinningWeight uint64
}

// SessionUseCase orchestrates the ballot write path: session creation with
// role-gated official sessions, the permission ledger, weighted vote
// accumulation, and the single irreversible close.
type SessionUseCase struct {
	Sessions    ports.SessionRepository
	Permissions ports.PermissionLedger
	Directory   ports.RoleDirectory
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// CreateSession allocates the next dense session id. Official sessions are
// admin-only and snapshot-grant voting permission to every current admin
// and chairperson member; membership changes after creation do not
// retroactively grant or revoke for this session.
func (uc SessionUseCase) CreateSession(ctx context.Context, cmd CreateSessionCommand) (CreateSessionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	creator := strings.TrimSpace(cmd.Creator)
	logger.Info("session create started",
		"event", "ballot_session_create_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"creator", creator,
		"kind", string(cmd.Kind),
	)

	if creator == "" || !entities.KnownKind(cmd.Kind) {
		return CreateSessionResult{}, domainerrors.ErrUnauthorized
	}
	if cmd.StartTime >= cmd.EndTime {
		logger.Warn("session create rejected: time range",
			"event", "ballot_session_create_invalid_time_range",
			"module", "governance/ballot-engine",
			"layer", "application",
			"creator", creator,
			"start_time", cmd.StartTime,
			"end_time", cmd.EndTime,
		)
		return CreateSessionResult{}, domainerrors.ErrInvalidTimeRange
	}
	if cmd.Kind == entities.SessionKindOfficial {
		isAdmin, err := uc.Directory.HasRole(ctx, ports.RoleAdmin, creator)
		if err != nil {
			return CreateSessionResult{}, err
		}
		if !isAdmin {
			logger.Warn("session create rejected: official requires admin",
				"event", "ballot_session_create_unauthorized",
				"module", "governance/ballot-engine",
				"layer", "application",
				"creator", creator,
			)
			return CreateSessionResult{}, domainerrors.ErrUnauthorized
		}
	}

	now := uc.now()
	proposals := make([]entities.Proposal, 0, len(cmd.ProposalNames))
	for _, name := range cmd.ProposalNames {
		proposals = append(proposals, entities.Proposal{
			Name:         name,
			VoterWeights: make(map[string]uint64),
		})
	}

	sessionID, err := uc.Sessions.CreateSession(ctx, entities.VotingSession{
		Name:      strings.TrimSpace(cmd.Name),
		Creator:   creator,
		Kind:      cmd.Kind,
		Proposals: proposals,
		StartTime: cmd.StartTime,
		EndTime:   cmd.EndTime,
		Opening:   true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return CreateSessionResult{}, err
	}

	if cmd.Kind == entities.SessionKindOfficial {
		if err := uc.grantToRoleSnapshot(ctx, sessionID, now); err != nil {
			return CreateSessionResult{}, err
		}
	}

	if err := uc.appendBallotEvent(ctx, "ballot.session.created", sessionID, now, map[string]any{
		"session_id": sessionID,
		"creator":    creator,
		"name":       strings.TrimSpace(cmd.Name),
		"kind":       string(cmd.Kind),
	}); err != nil {
		return CreateSessionResult{}, err
	}

	logger.Info("session created",
		"event", "ballot_session_created",
		"module", "governance/ballot-engine",
		"layer", "application",
		"session_id", sessionID,
		"creator", creator,
		"kind", string(cmd.Kind),
		"proposal_count", len(proposals),
	)
	return CreateSessionResult{SessionID: sessionID}, nil
}

// GrantVotingPermission records an explicit grant. A repeated grant is a
// complete no-op: no error and no second event.
func (uc SessionUseCase) GrantVotingPermission(ctx context.Context, cmd GrantPermissionCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	principal := strings.TrimSpace(cmd.Principal)
	caller := strings.TrimSpace(cmd.Caller)

	session, err := uc.getSession(ctx, cmd.SessionID)
	if err != nil {
		return err
	}
	if principal == "" {
		return domainerrors.ErrInvalidPrincipal
	}

	allowed := caller != "" && caller == session.Creator
	if !allowed {
		allowed, err = uc.hasAnyRole(ctx, caller, ports.RoleChairperson, ports.RoleAdmin)
		if err != nil {
			return err
		}
	}
	if !allowed {
		logger.Warn("permission grant rejected",
			"event", "ballot_permission_grant_unauthorized",
			"module", "governance/ballot-engine",
			"layer", "application",
			"session_id", cmd.SessionID,
			"principal", principal,
			"caller", caller,
		)
		return domainerrors.ErrUnauthorized
	}

	now := uc.now()
	granted, err := uc.Permissions.GrantPermission(ctx, cmd.SessionID, principal, now)
	if err != nil {
		return err
	}
	if !granted {
		return nil
	}

	if err := uc.appendBallotEvent(ctx, "ballot.permission.granted", cmd.SessionID, now, map[string]any{
		"session_id": cmd.SessionID,
		"principal":  principal,
		"granted_by": caller,
	}); err != nil {
		return err
	}
	logger.Info("voting permission granted",
		"event", "ballot_permission_granted",
		"module", "governance/ballot-engine",
		"layer", "application",
		"session_id", cmd.SessionID,
		"principal", principal,
		"caller", caller,
	)
	return nil
}

// CastVote accumulates weight. Preconditions are checked in a fixed order,
// each with a distinct failure, before the single atomic tally mutation.
func (uc SessionUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)

	session, err := uc.getSession(ctx, cmd.SessionID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !session.Opening {
		return CastVoteResult{}, domainerrors.ErrSessionNotOpen
	}
	if session.Closed {
		return CastVoteResult{}, domainerrors.ErrSessionClosed
	}
	if cmd.Weight == 0 {
		return CastVoteResult{}, domainerrors.ErrZeroWeight
	}
	if session.Kind != entities.SessionKindNormal {
		permitted, err := uc.Permissions.HasPermission(ctx, cmd.SessionID, caller)
		if err != nil {
			return CastVoteResult{}, err
		}
		if !permitted {
			logger.Warn("vote rejected: no permission",
				"event", "ballot_vote_unauthorized",
				"module", "governance/ballot-engine",
				"layer", "application",
				"session_id", cmd.SessionID,
				"caller", caller,
			)
			return CastVoteResult{}, domainerrors.ErrUnauthorized
		}
	}
	proposalIndex, found := session.FindProposalIndex(cmd.ProposalName)
	if !found {
		return CastVoteResult{}, domainerrors.ErrUnknownProposal
	}

	now := uc.now()
	cumulative, err := uc.Sessions.ApplyVote(ctx, ports.VoteApplication{
		SessionID:     cmd.SessionID,
		ProposalIndex: proposalIndex,
		Voter:         caller,
		Weight:        cmd.Weight,
		CastAt:        now,
	})
	if err != nil {
		return CastVoteResult{}, err
	}

	if err := uc.appendBallotEvent(ctx, "ballot.vote.cast", cmd.SessionID, now, map[string]any{
		"session_id":        cmd.SessionID,
		"proposal_index":    proposalIndex,
		"proposal_name":     cmd.ProposalName,
		"voter":             caller,
		"weight":            cmd.Weight,
		"cumulative_weight": cumulative,
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote cast",
		"event", "ballot_vote_cast",
		"module", "governance/ballot-engine",
		"layer", "application",
		"session_id", cmd.SessionID,
		"proposal_index", proposalIndex,
		"voter", caller,
		"weight", cmd.Weight,
		"cumulative_weight", cumulative,
	)
	return CastVoteResult{
		ProposalIndex:    proposalIndex,
		CumulativeWeight: cumulative,
	}, nil
}

// CloseSession flips Closed exactly once and reports the winner scan over
// the final tallies.
func (uc SessionUseCase) CloseSession(ctx context.Context, cmd CloseSessionCommand) (CloseSessionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	caller := strings.TrimSpace(cmd.Caller)

	session, err := uc.getSession(ctx, cmd.SessionID)
	if err != nil {
		return CloseSessionResult{}, err
	}
	if caller == "" || caller != session.Creator {
		logger.Warn("session close rejected: creator only",
			"event", "ballot_session_close_unauthorized",
			"module", "governance/ballot-engine",
			"layer", "application",
			"session_id", cmd.SessionID,
			"caller", caller,
		)
		return CloseSessionResult{}, domainerrors.ErrUnauthorized
	}
	if session.Closed {
		return CloseSessionResult{}, domainerrors.ErrAlreadyClosed
	}

	now := uc.now()
	closed, err := uc.Sessions.CloseSession(ctx, cmd.SessionID, now)
	if err != nil {
		return CloseSessionResult{}, err
	}
	winningIndex, winningWeight := closed.WinningProposal()

	if err := uc.appendBallotEvent(ctx, "ballot.session.closed", cmd.SessionID, now, map[string]any{
		"session_id":     cmd.SessionID,
		"closed_by":      caller,
		"winning_index":  winningIndex,
		"winning_weight": winningWeight,
		"total_votes":    closed.TotalVotes,
	}); err != nil {
		return CloseSessionResult{}, err
	}

	logger.Info("session closed",
		"event", "ballot_session_closed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"session_id", cmd.SessionID,
		"winning_index", winningIndex,
		"winning_weight", winningWeight,
	)
	return CloseSessionResult{
		WinningIndex:  winningIndex,
		WinningWeight: winningWeight,
	}, nil
}

func (uc SessionUseCase) getSession(ctx context.Context, sessionID uint64) (entities.VotingSession, error) {
	count, err := uc.Sessions.SessionCount(ctx)
	if err != nil {
		return entities.VotingSession{}, err
	}
	if sessionID >= count {
		return entities.VotingSession{}, domainerrors.ErrInvalidSessionID
	}
	return uc.Sessions.GetSession(ctx, sessionID)
}

func (uc SessionUseCase) hasAnyRole(ctx context.Context, principal string, roles ...string) (bool, error) {
	if principal == "" {
		return false, nil
	}
	for _, role := range roles {
		ok, err := uc.Directory.HasRole(ctx, role, principal)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// grantToRoleSnapshot permissions every current admin and chairperson
// member for a freshly created official session.
func (uc SessionUseCase) grantToRoleSnapshot(ctx context.Context, sessionID uint64, grantedAt time.Time) error {
	for _, role := range []string{ports.RoleAdmin, ports.RoleChairperson} {
		members, err := uc.Directory.Members(ctx, role)
		if err != nil {
			return err
		}
		for _, member := range members {
			if _, err := uc.Permissions.GrantPermission(ctx, sessionID, member, grantedAt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (uc SessionUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
