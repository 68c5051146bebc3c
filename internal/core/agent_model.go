package core

import (
	"time"

	"github.com/google/uuid"
)

// AgentRole is the business role of an identity. Only sellers own orders.
type AgentRole string

const (
	RoleSeller AgentRole = "SELLER"
	RoleAdmin  AgentRole = "ADMIN"
	RoleOwner  AgentRole = "OWNER"
)

// Agent is a login identity known to the engine.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Role      AgentRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CanOverrideOwner reports whether the agent may create orders on behalf of a seller.
func (a *Agent) CanOverrideOwner() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}

// AgentCanonicalizer maps an agent id to the economic actor it aggregates under.
// Two login identities that share sales and collections map to the same id.
type AgentCanonicalizer func(uuid.UUID) uuid.UUID

// IdentityCanonicalizer treats every agent as its own actor.
func IdentityCanonicalizer(id uuid.UUID) uuid.UUID { return id }

// AgentAliases maps alias agent ids to the canonical id they aggregate under.
type AgentAliases map[uuid.UUID]uuid.UUID

// Canonical returns the actor id aggregates. Unknown ids are their own actor.
func (a AgentAliases) Canonical(id uuid.UUID) uuid.UUID {
	if c, ok := a[id]; ok {
		return c
	}
	return id
}

// Members lists every id that shares id's actor, canonical id first.
func (a AgentAliases) Members(id uuid.UUID) []uuid.UUID {
	canonical := a.Canonical(id)
	members := []uuid.UUID{canonical}
	for alias, c := range a {
		if c == canonical && alias != canonical {
			members = append(members, alias)
		}
	}
	return members
}

// CanonicalizerFromAliases builds a canonicalizer from alias -> canonical pairs.
func CanonicalizerFromAliases(aliases map[uuid.UUID]uuid.UUID) AgentCanonicalizer {
	if len(aliases) == 0 {
		return IdentityCanonicalizer
	}
	return AgentAliases(aliases).Canonical
}
