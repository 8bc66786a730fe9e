package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"
	"plenum/internal/shared/upgradeproxy"
)

func newSession(proposals ...string) entities.VotingSession {
	built := make([]entities.Proposal, 0, len(proposals))
	for _, name := range proposals {
		built = append(built, entities.Proposal{
			Name:         name,
			VoterWeights: make(map[string]uint64),
		})
	}
	return entities.VotingSession{
		Name:      "slot session",
		Creator:   "alice",
		Kind:      entities.SessionKindNormal,
		Proposals: built,
		StartTime: 100,
		EndTime:   200,
		Opening:   true,
	}
}

func TestCreateSessionAssignsDenseIDs(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		got, err := store.CreateSession(ctx, newSession("a"))
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if got != want {
			t.Fatalf("session id = %d, want %d", got, want)
		}
	}
	count, err := store.SessionCount(ctx)
	if err != nil || count != 3 {
		t.Fatalf("SessionCount = (%d, %v), want 3", count, err)
	}
}

func TestGetSessionMissing(t *testing.T) {
	store := NewStore(nil)
	_, err := store.GetSession(context.Background(), 7)
	if !errors.Is(err, domainerrors.ErrInvalidSessionID) {
		t.Fatalf("err = %v, want ErrInvalidSessionID", err)
	}
}

func TestApplyVoteMutatesAllCountersTogether(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, newSession("a", "b"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	cumulative, err := store.ApplyVote(ctx, ports.VoteApplication{
		SessionID: sessionID, ProposalIndex: 1, Voter: "bob", Weight: 3, CastAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ApplyVote: %v", err)
	}
	if cumulative != 3 {
		t.Fatalf("cumulative = %d, want 3", cumulative)
	}

	cumulative, err = store.ApplyVote(ctx, ports.VoteApplication{
		SessionID: sessionID, ProposalIndex: 1, Voter: "bob", Weight: 4, CastAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ApplyVote: %v", err)
	}
	if cumulative != 7 {
		t.Fatalf("cumulative = %d, want 7", cumulative)
	}

	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Proposals[1].VoteCount != 7 || session.TotalVotes != 7 {
		t.Fatalf("counters = (%d, %d), want both 7", session.Proposals[1].VoteCount, session.TotalVotes)
	}
}

func TestApplyVoteFailureLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, newSession("a"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = store.ApplyVote(ctx, ports.VoteApplication{
		SessionID: sessionID, ProposalIndex: 5, Voter: "bob", Weight: 3, CastAt: time.Now(),
	})
	if !errors.Is(err, domainerrors.ErrUnknownProposal) {
		t.Fatalf("out-of-range index: err = %v, want ErrUnknownProposal", err)
	}

	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.TotalVotes != 0 {
		t.Fatalf("failed vote mutated TotalVotes: %d", session.TotalVotes)
	}

	if _, err := store.CloseSession(ctx, sessionID, time.Now()); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	_, err = store.ApplyVote(ctx, ports.VoteApplication{
		SessionID: sessionID, ProposalIndex: 0, Voter: "bob", Weight: 3, CastAt: time.Now(),
	})
	if !errors.Is(err, domainerrors.ErrSessionClosed) {
		t.Fatalf("closed session: err = %v, want ErrSessionClosed", err)
	}
}

func TestCloseSessionIsIrreversible(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, newSession("a"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	closed, err := store.CloseSession(ctx, sessionID, time.Now())
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if !closed.Closed {
		t.Fatal("returned session not marked closed")
	}
	if _, err := store.CloseSession(ctx, sessionID, time.Now()); !errors.Is(err, domainerrors.ErrAlreadyClosed) {
		t.Fatalf("second close: err = %v, want ErrAlreadyClosed", err)
	}
}

func TestGrantPermissionIdempotent(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	granted, err := store.GrantPermission(ctx, 0, "bob", time.Now())
	if err != nil || !granted {
		t.Fatalf("first grant = (%v, %v), want (true, nil)", granted, err)
	}
	granted, err = store.GrantPermission(ctx, 0, "bob", time.Now())
	if err != nil || granted {
		t.Fatalf("second grant = (%v, %v), want (false, nil)", granted, err)
	}
	ok, err := store.HasPermission(ctx, 0, "bob")
	if err != nil || !ok {
		t.Fatalf("HasPermission = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = store.HasPermission(ctx, 1, "bob")
	if err != nil || ok {
		t.Fatalf("cross-session leak: HasPermission = (%v, %v)", ok, err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	envelope := ports.EventEnvelope{
		EventID:       "evt-1",
		EventType:     "ballot.vote.cast",
		OccurredAt:    time.Now().UTC(),
		SourceService: "ballot-engine",
		SchemaVersion: 1,
		PartitionKey:  "0",
		Data:          json.RawMessage(`{"weight":3}`),
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("AppendOutbox: %v", err)
	}
	// Replaying the identical envelope is a no-op, not a conflict.
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("replay AppendOutbox: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("pending = %+v, want one row evt-1", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-1", time.Now()); err != nil {
		t.Fatalf("MarkOutboxPublished: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after publish = %d rows, want 0", len(pending))
	}

	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("missing row: err = %v, want ErrConflict", err)
	}
}

func TestSlotsAvoidReservedLocations(t *testing.T) {
	for _, slot := range []struct {
		name  string
		value interface{ Hex() string }
	}{
		{"session count", sessionCountSlot()},
		{"session 0", sessionSlot(0)},
		{"permission", permissionSlot(0, "bob")},
		{"outbox", outboxSlot()},
	} {
		if slot.value.Hex() == upgradeproxy.AdminSlot.Hex() ||
			slot.value.Hex() == upgradeproxy.ImplementationSlot.Hex() {
			t.Fatalf("%s slot collides with a reserved proxy slot", slot.name)
		}
	}
}
