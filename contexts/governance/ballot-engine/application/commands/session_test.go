package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"plenum/contexts/governance/ballot-engine/adapters/state"
	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
)

type fakeDirectory struct {
	roles map[string][]string
}

func (d fakeDirectory) HasRole(_ context.Context, role string, principal string) (bool, error) {
	for _, member := range d.roles[role] {
		if member == principal {
			return true, nil
		}
	}
	return false, nil
}

func (d fakeDirectory) Members(_ context.Context, role string) ([]string, error) {
	return append([]string(nil), d.roles[role]...), nil
}

func newTestUseCase(directory fakeDirectory) (SessionUseCase, *state.Store) {
	store := state.NewStore(nil)
	return SessionUseCase{
		Sessions:    store,
		Permissions: store,
		Directory:   directory,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
	}, store
}

func createNormalSession(t *testing.T, uc SessionUseCase, creator string, proposals ...string) uint64 {
	t.Helper()
	result, err := uc.CreateSession(context.Background(), CreateSessionCommand{
		Creator:       creator,
		Name:          "test session",
		ProposalNames: proposals,
		StartTime:     100,
		EndTime:       200,
		Kind:          entities.SessionKindNormal,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return result.SessionID
}

func TestCreateSessionAssignsDenseIDs(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{})
	if id := createNormalSession(t, uc, "alice", "a"); id != 0 {
		t.Fatalf("first session id = %d, want 0", id)
	}
	if id := createNormalSession(t, uc, "bob", "b"); id != 1 {
		t.Fatalf("second session id = %d, want 1", id)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{})
	ctx := context.Background()

	_, err := uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "alice", StartTime: 200, EndTime: 100, Kind: entities.SessionKindNormal,
	})
	if !errors.Is(err, domainerrors.ErrInvalidTimeRange) {
		t.Fatalf("inverted range: err = %v, want ErrInvalidTimeRange", err)
	}
	_, err = uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "alice", StartTime: 100, EndTime: 100, Kind: entities.SessionKindNormal,
	})
	if !errors.Is(err, domainerrors.ErrInvalidTimeRange) {
		t.Fatalf("equal range: err = %v, want ErrInvalidTimeRange", err)
	}
	_, err = uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "", StartTime: 100, EndTime: 200, Kind: entities.SessionKindNormal,
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("empty creator: err = %v, want ErrUnauthorized", err)
	}
	_, err = uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "alice", StartTime: 100, EndTime: 200, Kind: entities.SessionKind("committee"),
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("unknown kind: err = %v, want ErrUnauthorized", err)
	}
}

func TestCreateOfficialSessionRequiresAdmin(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{roles: map[string][]string{
		"admin": {"root"},
	}})
	ctx := context.Background()

	_, err := uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "alice", StartTime: 100, EndTime: 200, Kind: entities.SessionKindOfficial,
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-admin official: err = %v, want ErrUnauthorized", err)
	}

	result, err := uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "root", ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200,
		Kind: entities.SessionKindOfficial,
	})
	if err != nil {
		t.Fatalf("admin official: %v", err)
	}
	if result.SessionID != 0 {
		t.Fatalf("session id = %d, want 0", result.SessionID)
	}
}

func TestCreateOfficialSessionSnapshotsRoleMembers(t *testing.T) {
	directory := fakeDirectory{roles: map[string][]string{
		"admin":       {"root"},
		"chairperson": {"carol"},
	}}
	uc, store := newTestUseCase(directory)
	ctx := context.Background()

	result, err := uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "root", ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200,
		Kind: entities.SessionKindOfficial,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	for _, principal := range []string{"root", "carol"} {
		ok, err := store.HasPermission(ctx, result.SessionID, principal)
		if err != nil || !ok {
			t.Fatalf("snapshot grant for %s = (%v, %v), want permitted", principal, ok, err)
		}
	}

	// Membership changes after creation must not leak into the snapshot.
	directory.roles["chairperson"] = append(directory.roles["chairperson"], "dave")
	ok, err := store.HasPermission(ctx, result.SessionID, "dave")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("principal added after creation gained a snapshot grant")
	}
}

func TestGrantVotingPermissionAuthorization(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{roles: map[string][]string{
		"chairperson": {"carol"},
	}})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a")

	err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: sessionID, Principal: "bob", Caller: "mallory",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("outsider grant: err = %v, want ErrUnauthorized", err)
	}

	if err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: sessionID, Principal: "bob", Caller: "alice",
	}); err != nil {
		t.Fatalf("creator grant: %v", err)
	}
	if err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: sessionID, Principal: "erin", Caller: "carol",
	}); err != nil {
		t.Fatalf("chairperson grant: %v", err)
	}

	err = uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: 99, Principal: "bob", Caller: "alice",
	})
	if !errors.Is(err, domainerrors.ErrInvalidSessionID) {
		t.Fatalf("missing session: err = %v, want ErrInvalidSessionID", err)
	}

	ok, err := store.HasPermission(ctx, sessionID, "bob")
	if err != nil || !ok {
		t.Fatalf("grant not recorded: (%v, %v)", ok, err)
	}
}

func TestGrantVotingPermissionDuplicateIsNoop(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a")

	if err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: sessionID, Principal: "bob", Caller: "alice",
	}); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	before, err := store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}

	if err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: sessionID, Principal: "bob", Caller: "alice",
	}); err != nil {
		t.Fatalf("duplicate grant: %v", err)
	}
	after, err := store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("duplicate grant appended an event: %d -> %d rows", len(before), len(after))
	}
}

func TestCastVoteAccumulatesWeights(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a", "b")

	first, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "b", Weight: 3, Caller: "bob",
	})
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if first.ProposalIndex != 1 || first.CumulativeWeight != 3 {
		t.Fatalf("first vote = %+v, want index 1 weight 3", first)
	}

	second, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "b", Weight: 4, Caller: "bob",
	})
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if second.CumulativeWeight != 7 {
		t.Fatalf("cumulative weight = %d, want 7", second.CumulativeWeight)
	}

	if _, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "a", Weight: 2, Caller: "carol",
	}); err != nil {
		t.Fatalf("third vote: %v", err)
	}

	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	var sum uint64
	for _, proposal := range session.Proposals {
		sum += proposal.VoteCount
	}
	if session.TotalVotes != sum || session.TotalVotes != 9 {
		t.Fatalf("TotalVotes = %d, proposal sum = %d, want both 9", session.TotalVotes, sum)
	}
}

func TestCastVotePreconditions(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a")

	_, err := uc.CastVote(ctx, CastVoteCommand{SessionID: 42, ProposalName: "a", Weight: 1, Caller: "bob"})
	if !errors.Is(err, domainerrors.ErrInvalidSessionID) {
		t.Fatalf("missing session: err = %v, want ErrInvalidSessionID", err)
	}

	_, err = uc.CastVote(ctx, CastVoteCommand{SessionID: sessionID, ProposalName: "a", Weight: 0, Caller: "bob"})
	if !errors.Is(err, domainerrors.ErrZeroWeight) {
		t.Fatalf("zero weight: err = %v, want ErrZeroWeight", err)
	}

	_, err = uc.CastVote(ctx, CastVoteCommand{SessionID: sessionID, ProposalName: "missing", Weight: 1, Caller: "bob"})
	if !errors.Is(err, domainerrors.ErrUnknownProposal) {
		t.Fatalf("unknown proposal: err = %v, want ErrUnknownProposal", err)
	}

	if _, err := uc.CloseSession(ctx, CloseSessionCommand{SessionID: sessionID, Caller: "alice"}); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	_, err = uc.CastVote(ctx, CastVoteCommand{SessionID: sessionID, ProposalName: "a", Weight: 1, Caller: "bob"})
	if !errors.Is(err, domainerrors.ErrSessionClosed) {
		t.Fatalf("closed session: err = %v, want ErrSessionClosed", err)
	}
}

func TestCastVoteRequiresOpenSession(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{})
	ctx := context.Background()

	// The use case always opens sessions; seed one directly to exercise the
	// not-open gate.
	sessionID, err := store.CreateSession(ctx, entities.VotingSession{
		Name:    "dormant",
		Creator: "alice",
		Kind:    entities.SessionKindNormal,
		Proposals: []entities.Proposal{
			{Name: "a", VoterWeights: make(map[string]uint64)},
		},
		StartTime: 100,
		EndTime:   200,
		Opening:   false,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "a", Weight: 1, Caller: "bob",
	})
	if !errors.Is(err, domainerrors.ErrSessionNotOpen) {
		t.Fatalf("not-open session: err = %v, want ErrSessionNotOpen", err)
	}

	// The not-open gate fires before the weight check.
	_, err = uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "a", Weight: 0, Caller: "bob",
	})
	if !errors.Is(err, domainerrors.ErrSessionNotOpen) {
		t.Fatalf("not-open with zero weight: err = %v, want ErrSessionNotOpen", err)
	}

	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.TotalVotes != 0 {
		t.Fatalf("rejected vote mutated TotalVotes: %d", session.TotalVotes)
	}
}

func TestGrantVotingPermissionRejectsBlankPrincipal(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a")

	for _, principal := range []string{"", "   "} {
		err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
			SessionID: sessionID, Principal: principal, Caller: "alice",
		})
		if !errors.Is(err, domainerrors.ErrInvalidPrincipal) {
			t.Fatalf("principal %q: err = %v, want ErrInvalidPrincipal", principal, err)
		}
	}

	ok, err := store.HasPermission(ctx, sessionID, "")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("blank principal grant was recorded")
	}
}

func TestCastVoteOfficialRequiresPermission(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{roles: map[string][]string{
		"admin": {"root"},
	}})
	ctx := context.Background()

	result, err := uc.CreateSession(ctx, CreateSessionCommand{
		Creator: "root", ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200,
		Kind: entities.SessionKindOfficial,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = uc.CastVote(ctx, CastVoteCommand{
		SessionID: result.SessionID, ProposalName: "a", Weight: 1, Caller: "bob",
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("unpermitted vote: err = %v, want ErrUnauthorized", err)
	}

	if err := uc.GrantVotingPermission(ctx, GrantPermissionCommand{
		SessionID: result.SessionID, Principal: "bob", Caller: "root",
	}); err != nil {
		t.Fatalf("GrantVotingPermission: %v", err)
	}
	if _, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: result.SessionID, ProposalName: "a", Weight: 1, Caller: "bob",
	}); err != nil {
		t.Fatalf("permitted vote: %v", err)
	}

	// The snapshot grant covers the admin creator without an explicit grant.
	if _, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: result.SessionID, ProposalName: "a", Weight: 2, Caller: "root",
	}); err != nil {
		t.Fatalf("creator vote: %v", err)
	}
}

func TestCloseSessionCreatorOnlyAndOnce(t *testing.T) {
	uc, _ := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice", "a", "b", "c")

	for proposal, weight := range map[string]uint64{"a": 5, "b": 7} {
		if _, err := uc.CastVote(ctx, CastVoteCommand{
			SessionID: sessionID, ProposalName: proposal, Weight: weight, Caller: "bob",
		}); err != nil {
			t.Fatalf("CastVote %s: %v", proposal, err)
		}
	}
	if _, err := uc.CastVote(ctx, CastVoteCommand{
		SessionID: sessionID, ProposalName: "c", Weight: 7, Caller: "carol",
	}); err != nil {
		t.Fatalf("CastVote c: %v", err)
	}

	_, err := uc.CloseSession(ctx, CloseSessionCommand{SessionID: sessionID, Caller: "mallory"})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-creator close: err = %v, want ErrUnauthorized", err)
	}

	result, err := uc.CloseSession(ctx, CloseSessionCommand{SessionID: sessionID, Caller: "alice"})
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	// b and c tie at 7; the lower index wins.
	if result.WinningIndex != 1 || result.WinningWeight != 7 {
		t.Fatalf("winner = (%d, %d), want (1, 7)", result.WinningIndex, result.WinningWeight)
	}

	_, err = uc.CloseSession(ctx, CloseSessionCommand{SessionID: sessionID, Caller: "alice"})
	if !errors.Is(err, domainerrors.ErrAlreadyClosed) {
		t.Fatalf("second close: err = %v, want ErrAlreadyClosed", err)
	}
}

func TestCreateSessionAllowsEmptyProposalList(t *testing.T) {
	uc, store := newTestUseCase(fakeDirectory{})
	ctx := context.Background()
	sessionID := createNormalSession(t, uc, "alice")

	if _, err := uc.CloseSession(ctx, CloseSessionCommand{SessionID: sessionID, Caller: "alice"}); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	index, weight := session.WinningProposal()
	if index != 0 || weight != 0 {
		t.Fatalf("empty session winner = (%d, %d), want (0, 0)", index, weight)
	}
	if session.UpdatedAt.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("UpdatedAt in the future: %v", session.UpdatedAt)
	}
}
