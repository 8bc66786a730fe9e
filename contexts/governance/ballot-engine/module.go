package ballotengine

import (
	"log/slog"

	httpadapter "plenum/contexts/governance/ballot-engine/adapters/http"
	"plenum/contexts/governance/ballot-engine/adapters/proxycall"
	"plenum/contexts/governance/ballot-engine/adapters/state"
	"plenum/contexts/governance/ballot-engine/ports"
	"plenum/internal/shared/upgradeproxy"

	"github.com/ethereum/go-ethereum/common"
)

// Well-known addresses for single-node deployments where no external
// address authority exists. Production wiring overrides them from config.
var (
	DefaultDeployer       = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	DefaultImplementation = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

// Module is the ballot-engine composition root. The HTTP handler never
// touches the engine directly: every call rides the upgrade proxy, and the
// dispatcher behind it owns no state beyond the proxy's slot map.
type Module struct {
	Handler    httpadapter.Handler
	Ballot     proxycall.Client
	Dispatcher proxycall.Dispatcher
	Proxy      *upgradeproxy.Proxy
	Resolver   *upgradeproxy.MemoryCodeResolver
	Store      *state.Store
}

// Dependencies captures all runtime ports/config required by NewModule.
// Backend rebinds the engine to durable adapters; the zero value keeps
// everything in the proxy-owned slot map.
type Dependencies struct {
	Directory      ports.RoleDirectory
	Backend        proxycall.Backend
	Deployer       common.Address
	Implementation common.Address
	State          *upgradeproxy.StateStore
	Events         upgradeproxy.EventSink
	Logger         *slog.Logger
}

// NewModule registers a dispatcher at the implementation address and raises
// the proxy in front of it.
func NewModule(deps Dependencies) (Module, error) {
	dispatcher := proxycall.Dispatcher{
		Directory: deps.Directory,
		Backend:   deps.Backend,
		Logger:    deps.Logger,
	}
	resolver := upgradeproxy.NewMemoryCodeResolver()
	resolver.Register(deps.Implementation, dispatcher)

	proxy, err := upgradeproxy.New(upgradeproxy.Config{
		Deployer:       deps.Deployer,
		Implementation: deps.Implementation,
		Code:           resolver,
		State:          deps.State,
		Events:         deps.Events,
		Logger:         deps.Logger,
	})
	if err != nil {
		return Module{}, err
	}

	client := proxycall.Client{Proxy: proxy}
	return Module{
		Handler: httpadapter.Handler{
			Ballot: client,
			Logger: deps.Logger,
		},
		Ballot:     client,
		Dispatcher: dispatcher,
		Proxy:      proxy,
		Resolver:   resolver,
		Store:      state.NewStore(proxy.State()),
	}, nil
}

// NewInMemoryModule builds a fully wired engine over a fresh slot map with
// the well-known addresses.
func NewInMemoryModule(directory ports.RoleDirectory, logger *slog.Logger) (Module, error) {
	return NewModule(Dependencies{
		Directory:      directory,
		Deployer:       DefaultDeployer,
		Implementation: DefaultImplementation,
		Logger:         logger,
	})
}
