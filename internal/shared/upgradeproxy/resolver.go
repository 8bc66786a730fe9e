package upgradeproxy

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryCodeResolver is an in-process code ledger: implementations register
// under an address before the proxy can point at them.
type MemoryCodeResolver struct {
	mu   sync.RWMutex
	code map[common.Address]Implementation
}

func NewMemoryCodeResolver() *MemoryCodeResolver {
	return &MemoryCodeResolver{code: make(map[common.Address]Implementation)}
}

func (r *MemoryCodeResolver) Register(address common.Address, implementation Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code[address] = implementation
}

func (r *MemoryCodeResolver) Resolve(address common.Address) (Implementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	implementation, ok := r.code[address]
	return implementation, ok
}
