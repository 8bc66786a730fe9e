package upgradeproxy

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StateStore is the proxy-owned storage handle threaded into every
// implementation call. All durable state, the proxy's reserved slots and
// whatever the implementation keeps, lives in one slot-addressed map, so
// an upgrade swaps code while the state stays where it is.
type StateStore struct {
	mu    sync.RWMutex
	slots map[common.Hash][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{slots: make(map[common.Hash][]byte)}
}

// Get returns a copy of the value stored at slot.
func (s *StateStore) Get(slot common.Hash) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.slots[slot]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

func (s *StateStore) Set(slot common.Hash, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.slots[slot] = stored
}

// GetAddress reads a 20-byte address value from slot. Missing or
// wrong-sized values read as the zero address.
func (s *StateStore) GetAddress(slot common.Hash) common.Address {
	value, ok := s.Get(slot)
	if !ok || len(value) != common.AddressLength {
		return common.Address{}
	}
	return common.BytesToAddress(value)
}

func (s *StateStore) SetAddress(slot common.Hash, address common.Address) {
	s.Set(slot, address.Bytes())
}

// SlotTx stages writes during Mutate. Reads observe staged writes first so
// a mutation sees its own effects; nothing touches the store until the
// mutation function returns without error.
type SlotTx struct {
	store  map[common.Hash][]byte
	staged map[common.Hash][]byte
}

func (tx *SlotTx) Get(slot common.Hash) ([]byte, bool) {
	if value, ok := tx.staged[slot]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, true
	}
	value, ok := tx.store[slot]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

func (tx *SlotTx) Set(slot common.Hash, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)
	tx.staged[slot] = stored
}

// Mutate runs fn under the write lock with staged-write semantics: either
// every slot fn set is committed, or none is when fn returns an error.
func (s *StateStore) Mutate(fn func(tx *SlotTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &SlotTx{
		store:  s.slots,
		staged: make(map[common.Hash][]byte),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for slot, value := range tx.staged {
		s.slots[slot] = value
	}
	return nil
}
