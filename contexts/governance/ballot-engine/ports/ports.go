package ports

import (
	"context"
	"time"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	contractsv1 "plenum/contracts/gen/events/v1"
)

// VoteApplication is one atomic tally mutation: proposal count, the
// caller's cumulative weight, and the session total move together or not
// at all.
type VoteApplication struct {
	SessionID     uint64
	ProposalIndex int
	Voter         string
	Weight        uint64
	CastAt        time.Time
}

// SessionRepository is the write/read boundary for the append-only session
// arena. CreateSession assigns the next dense zero-based id. Mutating
// operations are all-or-nothing.
type SessionRepository interface {
	CreateSession(ctx context.Context, session entities.VotingSession) (uint64, error)
	GetSession(ctx context.Context, sessionID uint64) (entities.VotingSession, error)
	SessionCount(ctx context.Context) (uint64, error)
	ListSessions(ctx context.Context) ([]entities.VotingSession, error)
	ListSessionsByCreator(ctx context.Context, creator string) ([]entities.VotingSession, error)
	ApplyVote(ctx context.Context, vote VoteApplication) (uint64, error)
	CloseSession(ctx context.Context, sessionID uint64, closedAt time.Time) (entities.VotingSession, error)
}

// PermissionLedger records per-session voting grants for restricted
// sessions. Grant reports false when the principal was already permitted;
// grants are never revoked.
type PermissionLedger interface {
	GrantPermission(ctx context.Context, sessionID uint64, principal string, grantedAt time.Time) (bool, error)
	HasPermission(ctx context.Context, sessionID uint64, principal string) (bool, error)
}

// RoleDirectory is the capability-check boundary to the role membership
// directory. It is injected so the engine can run against a fake in tests.
type RoleDirectory interface {
	HasRole(ctx context.Context, role string, principal string) (bool, error)
	Members(ctx context.Context, role string) ([]string, error)
}

// Role names the engine consults in the directory.
const (
	RoleAdmin       = "admin"
	RoleChairperson = "chairperson"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for event rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-service envelope contract.
type EventEnvelope = contractsv1.Envelope

// OutboxWriter appends an event in the same commit scope as the mutation.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a pending relay row.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository supports relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher emits envelopes to the event bus adapter.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
