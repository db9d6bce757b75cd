package perception

import (
	"context"
	"sync"

	"github.com/facegate/facegate/internal/domain/model"
)

// StaticRepository is an in-memory IdentityRepository, used in development
// and tests in place of the external persistence collaborator.
type StaticRepository struct {
	mu          sync.RWMutex
	identities  map[string]model.Identity
	permissions map[string]map[string]model.Level
}

// NewStaticRepository creates an empty in-memory repository.
func NewStaticRepository() *StaticRepository {
	return &StaticRepository{
		identities:  make(map[string]model.Identity),
		permissions: make(map[string]map[string]model.Level),
	}
}

// AddIdentity stores or replaces an identity.
func (r *StaticRepository) AddIdentity(id model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[id.ID] = id
}

// SetPermission assigns a level for (identity, zone).
func (r *StaticRepository) SetPermission(identityID, zoneID string, level model.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.permissions[identityID] == nil {
		r.permissions[identityID] = make(map[string]model.Level)
	}
	r.permissions[identityID][zoneID] = level
}

// ListActiveIdentities returns identities with the Active flag set.
func (r *StaticRepository) ListActiveIdentities(ctx context.Context) ([]model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Identity, 0, len(r.identities))
	for _, id := range r.identities {
		if id.Active {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetPermissions returns an identity's zone grants.
func (r *StaticRepository) GetPermissions(ctx context.Context, identityID string) (map[string]model.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perms := r.permissions[identityID]
	out := make(map[string]model.Level, len(perms))
	for zone, level := range perms {
		out[zone] = level
	}
	return out, nil
}
