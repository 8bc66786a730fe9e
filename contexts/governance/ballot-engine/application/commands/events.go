package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"plenum/contexts/governance/ballot-engine/ports"
)

// appendBallotEvent partitions by session so session-scoped consumers see
// a stable order. Outbox is optional for pure read/test wiring.
func (uc SessionUseCase) appendBallotEvent(
	ctx context.Context,
	eventType string,
	sessionID uint64,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "ballot-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "session_id",
		PartitionKey:     strconv.FormatUint(sessionID, 10),
		Data:             payload,
	})
}
