package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"plenum/contexts/governance/ballot-engine/domain/entities"
	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/contexts/governance/ballot-engine/ports"
	"plenum/internal/shared/upgradeproxy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Slot labels for the engine's state. Each is hashed with plain keccak, so
// none can land on the proxy's reserved (offset-by-one) slots.
const (
	sessionCountLabel  = "plenum.ballot.session_count"
	sessionLabelPrefix = "plenum.ballot.session."
	permissionPrefix   = "plenum.ballot.permission."
	outboxLabel        = "plenum.ballot.outbox"
)

type outboxEntry struct {
	Message   ports.OutboxMessage `json:"message"`
	Published bool                `json:"published"`
}

// Store persists the whole engine in the proxy-owned slot map: the session
// arena under per-id slots, a count slot for dense id assignment, one slot
// per permission grant, and the outbox. Because every implementation
// version derives the same slots, state survives upgrades untouched.
type Store struct {
	state *upgradeproxy.StateStore
}

func NewStore(state *upgradeproxy.StateStore) *Store {
	if state == nil {
		state = upgradeproxy.NewStateStore()
	}
	return &Store{state: state}
}

// State exposes the underlying handle so the composition root can hand the
// same storage to the proxy.
func (s *Store) State() *upgradeproxy.StateStore {
	return s.state
}

func sessionCountSlot() common.Hash {
	return upgradeproxy.DerivedSlot(sessionCountLabel)
}

func sessionSlot(sessionID uint64) common.Hash {
	return upgradeproxy.DerivedSlot(sessionLabelPrefix + strconv.FormatUint(sessionID, 10))
}

func permissionSlot(sessionID uint64, principal string) common.Hash {
	return upgradeproxy.DerivedSlot(permissionPrefix + strconv.FormatUint(sessionID, 10) + "." + principal)
}

func outboxSlot() common.Hash {
	return upgradeproxy.DerivedSlot(outboxLabel)
}

func decodeCount(raw []byte, ok bool) uint64 {
	if !ok || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func encodeCount(count uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, count)
	return out
}

func decodeSession(raw []byte) (entities.VotingSession, error) {
	var session entities.VotingSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return entities.VotingSession{}, err
	}
	for i := range session.Proposals {
		if session.Proposals[i].VoterWeights == nil {
			session.Proposals[i].VoterWeights = make(map[string]uint64)
		}
	}
	return session, nil
}

func (s *Store) CreateSession(_ context.Context, session entities.VotingSession) (uint64, error) {
	var assigned uint64
	err := s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		count := decodeCount(tx.Get(sessionCountSlot()))
		session.SessionID = count

		encoded, err := json.Marshal(session)
		if err != nil {
			return err
		}
		tx.Set(sessionSlot(count), encoded)
		tx.Set(sessionCountSlot(), encodeCount(count+1))
		assigned = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

func (s *Store) GetSession(_ context.Context, sessionID uint64) (entities.VotingSession, error) {
	raw, ok := s.state.Get(sessionSlot(sessionID))
	if !ok {
		return entities.VotingSession{}, domainerrors.ErrInvalidSessionID
	}
	return decodeSession(raw)
}

func (s *Store) SessionCount(_ context.Context) (uint64, error) {
	return decodeCount(s.state.Get(sessionCountSlot())), nil
}

func (s *Store) ListSessions(ctx context.Context) ([]entities.VotingSession, error) {
	count, err := s.SessionCount(ctx)
	if err != nil {
		return nil, err
	}
	sessions := make([]entities.VotingSession, 0, count)
	for id := uint64(0); id < count; id++ {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *Store) ListSessionsByCreator(ctx context.Context, creator string) ([]entities.VotingSession, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	creator = strings.TrimSpace(creator)
	filtered := make([]entities.VotingSession, 0)
	for _, session := range sessions {
		if session.Creator == creator {
			filtered = append(filtered, session)
		}
	}
	return filtered, nil
}

func (s *Store) ApplyVote(_ context.Context, vote ports.VoteApplication) (uint64, error) {
	var cumulative uint64
	err := s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		raw, ok := tx.Get(sessionSlot(vote.SessionID))
		if !ok {
			return domainerrors.ErrInvalidSessionID
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}
		if session.Closed {
			return domainerrors.ErrSessionClosed
		}
		if vote.ProposalIndex < 0 || vote.ProposalIndex >= len(session.Proposals) {
			return domainerrors.ErrUnknownProposal
		}

		proposal := &session.Proposals[vote.ProposalIndex]
		proposal.VoteCount += vote.Weight
		proposal.VoterWeights[vote.Voter] += vote.Weight
		session.TotalVotes += vote.Weight
		session.UpdatedAt = vote.CastAt.UTC()
		cumulative = proposal.VoterWeights[vote.Voter]

		encoded, err := json.Marshal(session)
		if err != nil {
			return err
		}
		tx.Set(sessionSlot(vote.SessionID), encoded)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cumulative, nil
}

func (s *Store) CloseSession(_ context.Context, sessionID uint64, closedAt time.Time) (entities.VotingSession, error) {
	var closed entities.VotingSession
	err := s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		raw, ok := tx.Get(sessionSlot(sessionID))
		if !ok {
			return domainerrors.ErrInvalidSessionID
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}
		if session.Closed {
			return domainerrors.ErrAlreadyClosed
		}
		session.Closed = true
		session.UpdatedAt = closedAt.UTC()

		encoded, err := json.Marshal(session)
		if err != nil {
			return err
		}
		tx.Set(sessionSlot(sessionID), encoded)
		closed = session
		return nil
	})
	if err != nil {
		return entities.VotingSession{}, err
	}
	return closed, nil
}

func (s *Store) GrantPermission(_ context.Context, sessionID uint64, principal string, _ time.Time) (bool, error) {
	granted := false
	err := s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		slot := permissionSlot(sessionID, strings.TrimSpace(principal))
		if _, ok := tx.Get(slot); ok {
			return nil
		}
		tx.Set(slot, []byte{1})
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (s *Store) HasPermission(_ context.Context, sessionID uint64, principal string) (bool, error) {
	_, ok := s.state.Get(permissionSlot(sessionID, strings.TrimSpace(principal)))
	return ok, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		entries, err := readOutbox(tx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Message.OutboxID != outboxID {
				continue
			}
			if !bytes.Equal(entry.Message.Payload, payload) {
				return domainerrors.ErrConflict
			}
			return nil
		}
		entries = append(entries, outboxEntry{
			Message: ports.OutboxMessage{
				OutboxID:     outboxID,
				EventType:    strings.TrimSpace(envelope.EventType),
				PartitionKey: strings.TrimSpace(envelope.PartitionKey),
				Payload:      payload,
				CreatedAt:    createdAt,
			},
		})
		return writeOutbox(tx, entries)
	})
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []ports.OutboxMessage
	err := s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		entries, err := readOutbox(tx)
		if err != nil {
			return err
		}
		items = make([]ports.OutboxMessage, 0, len(entries))
		for _, entry := range entries {
			if entry.Published {
				continue
			}
			items = append(items, entry.Message)
			if len(items) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	return s.state.Mutate(func(tx *upgradeproxy.SlotTx) error {
		entries, err := readOutbox(tx)
		if err != nil {
			return err
		}
		for i := range entries {
			if entries[i].Message.OutboxID != strings.TrimSpace(outboxID) {
				continue
			}
			entries[i].Published = true
			return writeOutbox(tx, entries)
		}
		return domainerrors.ErrConflict
	})
}

func readOutbox(tx *upgradeproxy.SlotTx) ([]outboxEntry, error) {
	raw, ok := tx.Get(outboxSlot())
	if !ok {
		return nil, nil
	}
	var entries []outboxEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeOutbox(tx *upgradeproxy.SlotTx, entries []outboxEntry) error {
	encoded, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tx.Set(outboxSlot(), encoded)
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
