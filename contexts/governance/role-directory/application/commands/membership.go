package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "plenum/contexts/governance/role-directory/application"
	"plenum/contexts/governance/role-directory/domain/entities"
	domainerrors "plenum/contexts/governance/role-directory/domain/errors"
	"plenum/contexts/governance/role-directory/ports"
)

// GrantRoleCommand adds a principal to a role on behalf of a caller.
type GrantRoleCommand struct {
	Role      string
	Principal string
	Caller    string
}

// GrantRoleResult reports whether the grant changed anything; a repeated
// grant is a no-op, not an error.
type GrantRoleResult struct {
	Granted bool
}

// RevokeRoleCommand removes a principal from a role on behalf of a caller.
type RevokeRoleCommand struct {
	Role      string
	Principal string
	Caller    string
}

// MembershipUseCase enforces the role hierarchy: only members of
// AdminOf(role) may grant or revoke that role.
type MembershipUseCase struct {
	Members ports.MembershipRepository
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func (uc MembershipUseCase) GrantRole(ctx context.Context, cmd GrantRoleCommand) (GrantRoleResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	role := strings.TrimSpace(cmd.Role)
	principal := strings.TrimSpace(cmd.Principal)
	caller := strings.TrimSpace(cmd.Caller)

	logger.Info("role grant started",
		"event", "roles_grant_started",
		"module", "governance/role-directory",
		"layer", "application",
		"role", role,
		"principal", principal,
		"caller", caller,
	)

	if err := uc.authorize(ctx, role, principal, caller); err != nil {
		logger.Warn("role grant rejected",
			"event", "roles_grant_rejected",
			"module", "governance/role-directory",
			"layer", "application",
			"role", role,
			"principal", principal,
			"caller", caller,
			"error", err.Error(),
		)
		return GrantRoleResult{}, err
	}

	now := uc.now()
	granted, err := uc.Members.Grant(ctx, role, principal, caller, now)
	if err != nil {
		return GrantRoleResult{}, err
	}
	if !granted {
		logger.Info("role grant was a no-op",
			"event", "roles_grant_noop",
			"module", "governance/role-directory",
			"layer", "application",
			"role", role,
			"principal", principal,
		)
		return GrantRoleResult{Granted: false}, nil
	}

	if err := uc.appendMembershipEvent(ctx, "role.granted", role, principal, caller, now); err != nil {
		return GrantRoleResult{}, err
	}
	logger.Info("role granted",
		"event", "roles_granted",
		"module", "governance/role-directory",
		"layer", "application",
		"role", role,
		"principal", principal,
		"caller", caller,
	)
	return GrantRoleResult{Granted: true}, nil
}

func (uc MembershipUseCase) RevokeRole(ctx context.Context, cmd RevokeRoleCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	role := strings.TrimSpace(cmd.Role)
	principal := strings.TrimSpace(cmd.Principal)
	caller := strings.TrimSpace(cmd.Caller)

	logger.Info("role revoke started",
		"event", "roles_revoke_started",
		"module", "governance/role-directory",
		"layer", "application",
		"role", role,
		"principal", principal,
		"caller", caller,
	)

	if err := uc.authorize(ctx, role, principal, caller); err != nil {
		logger.Warn("role revoke rejected",
			"event", "roles_revoke_rejected",
			"module", "governance/role-directory",
			"layer", "application",
			"role", role,
			"principal", principal,
			"caller", caller,
			"error", err.Error(),
		)
		return err
	}

	removed, err := uc.Members.Revoke(ctx, role, principal)
	if err != nil {
		return err
	}
	if !removed {
		return domainerrors.ErrNotMember
	}

	now := uc.now()
	if err := uc.appendMembershipEvent(ctx, "role.revoked", role, principal, caller, now); err != nil {
		return err
	}
	logger.Info("role revoked",
		"event", "roles_revoked",
		"module", "governance/role-directory",
		"layer", "application",
		"role", role,
		"principal", principal,
		"caller", caller,
	)
	return nil
}

func (uc MembershipUseCase) authorize(ctx context.Context, role string, principal string, caller string) error {
	if principal == "" {
		return domainerrors.ErrInvalidPrincipal
	}
	adminRole, known := entities.AdminOf(role)
	if !known {
		return domainerrors.ErrUnknownRole
	}
	if caller == "" {
		return domainerrors.ErrUnauthorized
	}
	allowed, err := uc.Members.HasRole(ctx, adminRole, caller)
	if err != nil {
		return err
	}
	if !allowed {
		return domainerrors.ErrUnauthorized
	}
	return nil
}

func (uc MembershipUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc MembershipUseCase) appendMembershipEvent(
	ctx context.Context,
	eventType string,
	role string,
	principal string,
	caller string,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"role":        role,
		"principal":   principal,
		"actioned_by": caller,
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt,
		SourceService:    "role-directory",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "role",
		PartitionKey:     role,
		Data:             payload,
	})
}
