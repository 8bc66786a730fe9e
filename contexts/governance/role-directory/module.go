package roledirectory

import (
	"log/slog"

	httpadapter "plenum/contexts/governance/role-directory/adapters/http"
	"plenum/contexts/governance/role-directory/adapters/memory"
	"plenum/contexts/governance/role-directory/application/commands"
	"plenum/contexts/governance/role-directory/application/queries"
	"plenum/contexts/governance/role-directory/domain/entities"
	"plenum/contexts/governance/role-directory/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Membership commands.MembershipUseCase
	Queries    queries.MembershipQueries
	Store      *memory.Store
}

type Dependencies struct {
	Members ports.MembershipRepository
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	membership := commands.MembershipUseCase{
		Members: deps.Members,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Logger:  deps.Logger,
	}
	membershipQueries := queries.MembershipQueries{
		Members: deps.Members,
	}
	return Module{
		Handler: httpadapter.Handler{
			Membership: membership,
			Queries:    membershipQueries,
			Logger:     deps.Logger,
		},
		Membership: membership,
		Queries:    membershipQueries,
	}
}

// NewInMemoryModule builds a directory backed by the memory store, seeded
// with the given admin principals.
func NewInMemoryModule(seedAdmins []string, logger *slog.Logger) Module {
	store := memory.NewStore()
	store.Seed(entities.RoleAdmin, seedAdmins)
	module := NewModule(Dependencies{
		Members: store,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	return module
}
