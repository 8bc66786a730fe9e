package ports

import (
	"context"
	"time"

	contractsv1 "plenum/contracts/gen/events/v1"
)

// MembershipRepository is the write/read boundary for role membership.
// Grant reports false when the principal already held the role; Revoke
// reports false when there was nothing to remove.
type MembershipRepository interface {
	Grant(ctx context.Context, role string, principal string, grantedBy string, grantedAt time.Time) (bool, error)
	Revoke(ctx context.Context, role string, principal string) (bool, error)
	HasRole(ctx context.Context, role string, principal string) (bool, error)
	Members(ctx context.Context, role string) ([]string, error)
	RolesOf(ctx context.Context, principal string) ([]string, error)
}

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
