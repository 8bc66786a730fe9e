package commands

import (
	"context"
	"errors"
	"testing"

	"plenum/contexts/governance/role-directory/adapters/memory"
	"plenum/contexts/governance/role-directory/domain/entities"
	domainerrors "plenum/contexts/governance/role-directory/domain/errors"
)

func newTestUseCase(t *testing.T) (MembershipUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.Seed(entities.RoleAdmin, []string{"root"})
	uc := MembershipUseCase{
		Members: store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
	}
	return uc, store
}

func pendingCount(t *testing.T, store *memory.Store) int {
	t.Helper()
	pending, err := store.ListPendingOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	return len(pending)
}

func TestGrantRequiresAdminCaller(t *testing.T) {
	uc, store := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "stranger",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("stranger grant: err = %v, want ErrUnauthorized", err)
	}
	if ok, _ := store.HasRole(ctx, entities.RoleChairperson, "carol"); ok {
		t.Fatal("rejected grant still landed")
	}

	result, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	})
	if err != nil || !result.Granted {
		t.Fatalf("admin grant = (%+v, %v), want Granted", result, err)
	}
	if ok, _ := store.HasRole(ctx, entities.RoleChairperson, "carol"); !ok {
		t.Fatal("granted role not visible")
	}
}

func TestAdminAdministersBothRoles(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	// A chairperson cannot grant chairperson; only admins administer roles.
	if _, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	}); err != nil {
		t.Fatalf("seed chair: %v", err)
	}
	_, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "dave", Caller: "carol",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("chair grants chair: err = %v, want ErrUnauthorized", err)
	}

	// Admins may also extend the admin role itself.
	result, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleAdmin, Principal: "second-admin", Caller: "root",
	})
	if err != nil || !result.Granted {
		t.Fatalf("admin grants admin = (%+v, %v)", result, err)
	}
}

func TestDuplicateGrantIsNoOpWithoutSecondEvent(t *testing.T) {
	uc, store := newTestUseCase(t)
	ctx := context.Background()

	if _, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	}); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	before := pendingCount(t, store)

	result, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	})
	if err != nil {
		t.Fatalf("repeated grant: %v", err)
	}
	if result.Granted {
		t.Fatal("repeated grant reported as a change")
	}
	if after := pendingCount(t, store); after != before {
		t.Fatalf("outbox rows = %d after no-op grant, want %d", after, before)
	}
}

func TestRevokeValidation(t *testing.T) {
	uc, store := newTestUseCase(t)
	ctx := context.Background()

	err := uc.RevokeRole(ctx, RevokeRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	})
	if !errors.Is(err, domainerrors.ErrNotMember) {
		t.Fatalf("revoke non-member: err = %v, want ErrNotMember", err)
	}

	if _, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	err = uc.RevokeRole(ctx, RevokeRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "stranger",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("stranger revoke: err = %v, want ErrUnauthorized", err)
	}
	if err := uc.RevokeRole(ctx, RevokeRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "root",
	}); err != nil {
		t.Fatalf("admin revoke: %v", err)
	}
	if ok, _ := store.HasRole(ctx, entities.RoleChairperson, "carol"); ok {
		t.Fatal("revoked member still has the role")
	}
}

func TestGrantInputValidation(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "  ", Caller: "root",
	})
	if !errors.Is(err, domainerrors.ErrInvalidPrincipal) {
		t.Fatalf("blank principal: err = %v, want ErrInvalidPrincipal", err)
	}

	_, err = uc.GrantRole(ctx, GrantRoleCommand{
		Role: "treasurer", Principal: "carol", Caller: "root",
	})
	if !errors.Is(err, domainerrors.ErrUnknownRole) {
		t.Fatalf("unknown role: err = %v, want ErrUnknownRole", err)
	}

	_, err = uc.GrantRole(ctx, GrantRoleCommand{
		Role: entities.RoleChairperson, Principal: "carol", Caller: "",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("anonymous caller: err = %v, want ErrUnauthorized", err)
	}
}
