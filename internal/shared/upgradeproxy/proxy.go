package upgradeproxy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrZeroAddress          = errors.New("zero address")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrImplementationUnset  = errors.New("implementation is unset")
	ErrCodeResolverRequired = errors.New("code resolver is required")
)

// Call is one forwarded invocation: the caller identity exactly as the
// transport authenticated it, and the input payload exactly as received.
type Call struct {
	Caller string
	Input  []byte
}

// Implementation is replaceable governance logic. Execute runs against the
// proxy-owned state handle, not state of its own, so swapping
// implementations never moves accumulated state.
type Implementation interface {
	Execute(ctx context.Context, state *StateStore, call Call) ([]byte, error)
}

// CodeResolver maps an implementation address to its executable logic. It
// stands in for the code ledger of the hosting runtime.
type CodeResolver interface {
	Resolve(address common.Address) (Implementation, bool)
}

// UpgradeEvent records one implementation swap.
type UpgradeEvent struct {
	Previous   common.Address
	Next       common.Address
	Caller     common.Address
	OccurredAt time.Time
}

// EventSink receives upgrade notifications. Optional; nil means log-only.
type EventSink interface {
	AppendUpgradeEvent(ctx context.Context, event UpgradeEvent) error
}

type Config struct {
	Deployer       common.Address
	Implementation common.Address
	Code           CodeResolver
	State          *StateStore
	Events         EventSink
	Logger         *slog.Logger
}

// Proxy is the stable-address façade. Its entire own state is the two
// reserved slots; everything else belongs to the implementation.
type Proxy struct {
	state  *StateStore
	code   CodeResolver
	events EventSink
	logger *slog.Logger
}

// New moves the proxy from Uninitialized to Active(admin, implementation).
// The deployer becomes the admin.
func New(cfg Config) (*Proxy, error) {
	if cfg.Deployer == (common.Address{}) || cfg.Implementation == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if cfg.Code == nil {
		return nil, ErrCodeResolverRequired
	}
	state := cfg.State
	if state == nil {
		state = NewStateStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state.SetAddress(AdminSlot, cfg.Deployer)
	state.SetAddress(ImplementationSlot, cfg.Implementation)

	return &Proxy{
		state:  state,
		code:   cfg.Code,
		events: cfg.Events,
		logger: logger,
	}, nil
}

func (p *Proxy) Admin() common.Address {
	return p.state.GetAddress(AdminSlot)
}

func (p *Proxy) Implementation() common.Address {
	return p.state.GetAddress(ImplementationSlot)
}

// State exposes the proxy-owned storage handle for composition-root wiring
// and direct-versus-forwarded equivalence tests.
func (p *Proxy) State() *StateStore {
	return p.state
}

// UpgradeTo atomically replaces the stored implementation address. Only the
// admin may upgrade; a failed upgrade leaves the slot untouched.
func (p *Proxy) UpgradeTo(ctx context.Context, newImplementation common.Address, caller common.Address) error {
	if caller != p.Admin() {
		return ErrUnauthorized
	}
	if newImplementation == (common.Address{}) {
		return ErrZeroAddress
	}

	previous := p.Implementation()
	p.state.SetAddress(ImplementationSlot, newImplementation)

	now := time.Now().UTC()
	if p.events != nil {
		if err := p.events.AppendUpgradeEvent(ctx, UpgradeEvent{
			Previous:   previous,
			Next:       newImplementation,
			Caller:     caller,
			OccurredAt: now,
		}); err != nil {
			// The slot swap already committed; surface the sink failure
			// without undoing the upgrade.
			p.logger.Error("upgrade event append failed",
				"event", "proxy_upgrade_event_failed",
				"module", "internal/shared/upgradeproxy",
				"layer", "shared",
				"error", err.Error(),
			)
			return err
		}
	}

	p.logger.Info("implementation upgraded",
		"event", "proxy_upgraded",
		"module", "internal/shared/upgradeproxy",
		"layer", "shared",
		"previous", previous.Hex(),
		"next", newImplementation.Hex(),
		"caller", caller.Hex(),
	)
	return nil
}

// Invoke forwards an unrecognized call to the current implementation. The
// input bytes, the caller identity, the returned bytes, and any error pass
// through unchanged.
func (p *Proxy) Invoke(ctx context.Context, caller string, input []byte) ([]byte, error) {
	address := p.Implementation()
	if address == (common.Address{}) {
		return nil, ErrImplementationUnset
	}
	implementation, ok := p.code.Resolve(address)
	if !ok {
		return nil, ErrImplementationUnset
	}
	return implementation.Execute(ctx, p.state, Call{
		Caller: caller,
		Input:  input,
	})
}
