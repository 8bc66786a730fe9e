package queries

import (
	"context"
	"strings"

	"plenum/contexts/governance/role-directory/domain/entities"
	domainerrors "plenum/contexts/governance/role-directory/domain/errors"
	"plenum/contexts/governance/role-directory/ports"
)

// MembershipQueries serves read-only directory lookups. It also backs the
// ballot engine's capability-check port.
type MembershipQueries struct {
	Members ports.MembershipRepository
}

func (q MembershipQueries) HasRole(ctx context.Context, role string, principal string) (bool, error) {
	role = strings.TrimSpace(role)
	if !entities.KnownRole(role) {
		return false, domainerrors.ErrUnknownRole
	}
	return q.Members.HasRole(ctx, role, strings.TrimSpace(principal))
}

func (q MembershipQueries) MembersOf(ctx context.Context, role string) ([]string, error) {
	role = strings.TrimSpace(role)
	if !entities.KnownRole(role) {
		return nil, domainerrors.ErrUnknownRole
	}
	return q.Members.Members(ctx, role)
}

func (q MembershipQueries) RolesOf(ctx context.Context, principal string) ([]string, error) {
	return q.Members.RolesOf(ctx, strings.TrimSpace(principal))
}
