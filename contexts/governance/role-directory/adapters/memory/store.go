package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"plenum/contexts/governance/role-directory/domain/errors"
	"plenum/contexts/governance/role-directory/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store keeps each role's members as an ordered slice plus a position map,
// so removal is an O(1) swap-and-pop. Order carries no meaning beyond
// stable enumeration.
type Store struct {
	mu sync.RWMutex

	members   map[string][]string
	positions map[string]map[string]int
	outbox    map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		members:   make(map[string][]string),
		positions: make(map[string]map[string]int),
		outbox:    make(map[string]outboxRecord),
	}
}

// Seed installs members without hierarchy checks. Bootstrap uses it so the
// directory never starts adminless.
func (s *Store) Seed(role string, principals []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, principal := range principals {
		s.grantLocked(strings.TrimSpace(role), strings.TrimSpace(principal))
	}
}

func (s *Store) Grant(_ context.Context, role string, principal string, _ string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantLocked(strings.TrimSpace(role), strings.TrimSpace(principal)), nil
}

func (s *Store) grantLocked(role string, principal string) bool {
	if principal == "" {
		return false
	}
	positions, ok := s.positions[role]
	if !ok {
		positions = make(map[string]int)
		s.positions[role] = positions
	}
	if _, exists := positions[principal]; exists {
		return false
	}
	positions[principal] = len(s.members[role])
	s.members[role] = append(s.members[role], principal)
	return true
}

func (s *Store) Revoke(_ context.Context, role string, principal string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role = strings.TrimSpace(role)
	principal = strings.TrimSpace(principal)

	positions, ok := s.positions[role]
	if !ok {
		return false, nil
	}
	index, exists := positions[principal]
	if !exists {
		return false, nil
	}

	members := s.members[role]
	last := len(members) - 1
	if index != last {
		members[index] = members[last]
		positions[members[index]] = index
	}
	s.members[role] = members[:last]
	delete(positions, principal)
	return true, nil
}

func (s *Store) HasRole(_ context.Context, role string, principal string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions, ok := s.positions[strings.TrimSpace(role)]
	if !ok {
		return false, nil
	}
	_, exists := positions[strings.TrimSpace(principal)]
	return exists, nil
}

func (s *Store) Members(_ context.Context, role string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.members[strings.TrimSpace(role)]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (s *Store) RolesOf(_ context.Context, principal string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal = strings.TrimSpace(principal)
	roles := make([]string, 0, 2)
	for role, positions := range s.positions {
		if _, ok := positions[principal]; ok {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return errors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return errors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
