package engine

import (
	"context"
	"slices"
	"sync"
)

// AdminRole short-circuits role checks; admins may cancel any request.
const AdminRole = "admin"

// IdentityProvider resolves the roles an actor holds. The engine never
// inspects concrete role names beyond comparing them to a level's
// required role, so any directory can back this.
type IdentityProvider interface {
	RolesOf(ctx context.Context, actor string) ([]string, error)
}

// StaticIdentityProvider resolves roles from a fixed in-memory map.
// It backs tests and single-tenant deployments configured from a file.
type StaticIdentityProvider struct {
	mu    sync.RWMutex
	roles map[string][]string
}

// NewStaticIdentityProvider creates a provider over an actor-to-roles map.
func NewStaticIdentityProvider(roles map[string][]string) *StaticIdentityProvider {
	if roles == nil {
		roles = make(map[string][]string)
	}

	return &StaticIdentityProvider{roles: roles}
}

func (p *StaticIdentityProvider) RolesOf(_ context.Context, actor string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.roles[actor]), nil
}

// Grant adds a role to an actor.
func (p *StaticIdentityProvider) Grant(actor, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !slices.Contains(p.roles[actor], role) {
		p.roles[actor] = append(p.roles[actor], role)
	}
}

// HeaderRoles is an IdentityProvider resolved per-call from roles the API
// host extracted upstream, keyed by actor.
type HeaderRoles map[string][]string

func (h HeaderRoles) RolesOf(_ context.Context, actor string) ([]string, error) {
	return h[actor], nil
}
