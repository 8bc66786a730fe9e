package queries

import (
	"context"
	"strings"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"
)

// AuditQueries produces the chairperson-only voting-history views. Cost is
// O(total proposals across all sessions), acceptable because the arena is
// append-only and bounded by prior creation calls.
type AuditQueries struct {
	Sessions  ports.SessionRepository
	Directory ports.RoleDirectory
}

// VotedProposalsOf lists every proposal the principal has contributed
// weight to, ordered by (session id, proposal index). The principal being
// audited, not the transport caller, must hold the chairperson role.
func (q AuditQueries) VotedProposalsOf(ctx context.Context, principal string) ([]entities.ProposalView, error) {
	return q.partition(ctx, principal, true)
}

// UnvotedProposalsOf is the complement: proposals the principal has no
// weight on.
func (q AuditQueries) UnvotedProposalsOf(ctx context.Context, principal string) ([]entities.ProposalView, error) {
	return q.partition(ctx, principal, false)
}

func (q AuditQueries) partition(ctx context.Context, principal string, voted bool) ([]entities.ProposalView, error) {
	principal = strings.TrimSpace(principal)
	isChair, err := q.Directory.HasRole(ctx, ports.RoleChairperson, principal)
	if err != nil {
		return nil, err
	}
	if !isChair {
		return nil, domainerrors.ErrUnauthorized
	}

	sessions, err := q.Sessions.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	// Two passes: size the result, then fill it, mirroring the fixed-size
	// allocation of the original tally engine.
	total := 0
	for _, session := range sessions {
		for i := range session.Proposals {
			if (session.CumulativeWeight(i, principal) > 0) == voted {
				total++
			}
		}
	}

	views := make([]entities.ProposalView, 0, total)
	for _, session := range sessions {
		for i := range session.Proposals {
			weight := session.CumulativeWeight(i, principal)
			if (weight > 0) != voted {
				continue
			}
			views = append(views, entities.ProposalView{
				SessionID:        session.SessionID,
				ProposalIndex:    i,
				Name:             session.Proposals[i].Name,
				CumulativeWeight: weight,
				SessionKind:      session.Kind,
			})
		}
	}
	return views, nil
}
