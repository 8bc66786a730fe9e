package queries

import (
	"context"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"
)

// WinnerView is the read model for the winning-proposal query.
type WinnerView struct {
	SessionID uint64
	Index     int
	Name      string
	Weight    uint64
}

// SessionQueries serves the session read models.
type SessionQueries struct {
	Sessions ports.SessionRepository
}

// WinningProposal recomputes the winner scan; it is only answerable once
// the session is closed.
func (q SessionQueries) WinningProposal(ctx context.Context, sessionID uint64) (WinnerView, error) {
	session, err := q.getSession(ctx, sessionID)
	if err != nil {
		return WinnerView{}, err
	}
	if !session.Closed {
		return WinnerView{}, domainerrors.ErrSessionNotClosed
	}
	index, weight := session.WinningProposal()
	name := ""
	if index < len(session.Proposals) {
		name = session.Proposals[index].Name
	}
	return WinnerView{
		SessionID: sessionID,
		Index:     index,
		Name:      name,
		Weight:    weight,
	}, nil
}

func (q SessionQueries) GetSession(ctx context.Context, sessionID uint64) (entities.VotingSession, error) {
	return q.getSession(ctx, sessionID)
}

func (q SessionQueries) ListSessions(ctx context.Context) ([]entities.VotingSession, error) {
	return q.Sessions.ListSessions(ctx)
}

func (q SessionQueries) SessionsOfCreator(ctx context.Context, creator string) ([]entities.VotingSession, error) {
	return q.Sessions.ListSessionsByCreator(ctx, creator)
}

func (q SessionQueries) getSession(ctx context.Context, sessionID uint64) (entities.VotingSession, error) {
	count, err := q.Sessions.SessionCount(ctx)
	if err != nil {
		return entities.VotingSession{}, err
	}
	if sessionID >= count {
		return entities.VotingSession{}, domainerrors.ErrInvalidSessionID
	}
	return q.Sessions.GetSession(ctx, sessionID)
}
