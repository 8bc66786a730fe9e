package httpadapter

import (
	"context"
	"log/slog"

	"plenum/contexts/governance/role-directory/application/commands"
	"plenum/contexts/governance/role-directory/application/queries"
	httptransport "plenum/contexts/governance/role-directory/transport/http"
)

type Handler struct {
	Membership commands.MembershipUseCase
	Queries    queries.MembershipQueries
	Logger     *slog.Logger
}

func (h Handler) GrantRoleHandler(
	ctx context.Context,
	role string,
	caller string,
	req httptransport.RoleMutationRequest,
) (httptransport.RoleMutationResponse, error) {
	result, err := h.Membership.GrantRole(ctx, commands.GrantRoleCommand{
		Role:      role,
		Principal: req.Principal,
		Caller:    caller,
	})
	if err != nil {
		return httptransport.RoleMutationResponse{}, err
	}
	return httptransport.RoleMutationResponse{
		Role:      role,
		Principal: req.Principal,
		Granted:   result.Granted,
	}, nil
}

func (h Handler) RevokeRoleHandler(
	ctx context.Context,
	role string,
	caller string,
	req httptransport.RoleMutationRequest,
) (httptransport.RoleMutationResponse, error) {
	err := h.Membership.RevokeRole(ctx, commands.RevokeRoleCommand{
		Role:      role,
		Principal: req.Principal,
		Caller:    caller,
	})
	if err != nil {
		return httptransport.RoleMutationResponse{}, err
	}
	return httptransport.RoleMutationResponse{
		Role:      role,
		Principal: req.Principal,
		Revoked:   true,
	}, nil
}

func (h Handler) MembersHandler(ctx context.Context, role string) (httptransport.MembersResponse, error) {
	members, err := h.Queries.MembersOf(ctx, role)
	if err != nil {
		return httptransport.MembersResponse{}, err
	}
	return httptransport.MembersResponse{
		Role:    role,
		Members: members,
	}, nil
}

func (h Handler) RolesOfHandler(ctx context.Context, principal string) (httptransport.RolesOfResponse, error) {
	roles, err := h.Queries.RolesOf(ctx, principal)
	if err != nil {
		return httptransport.RolesOfResponse{}, err
	}
	return httptransport.RolesOfResponse{
		Principal: principal,
		Roles:     roles,
	}, nil
}
