// Package access resolves the caller's role flags for a workflow record.
package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/workflow"
)

// Resolver computes RoleFlags from the actor, the record and a single
// personnel lookup per (user, project).
type Resolver struct {
	personnel port.PersonnelRepository

	mu        sync.RWMutex
	cache     map[cacheKey]cacheEntry
	cacheTTL  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type cacheKey struct {
	userID    string
	projectID string
}

type cacheEntry struct {
	personnel *entity.Personnel
	loadedAt  time.Time
}

// Option configures the resolver
type Option func(*Resolver)

// WithCacheTTL keeps personnel lookups for the given duration. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a new role resolver
func NewResolver(personnel port.PersonnelRepository, opts ...Option) *Resolver {
	r := &Resolver{
		personnel: personnel,
		cache:     make(map[cacheKey]cacheEntry),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the caller's role flags for an existing record
func (r *Resolver) Resolve(ctx context.Context, actor entity.Actor, record *entity.Record) (workflow.RoleFlags, error) {
	p, err := r.lookup(ctx, actor.UserID, record.ProjectID)
	if err != nil {
		return workflow.RoleFlags{}, err
	}

	flags := baseFlags(actor, p, record.Module)
	flags.IsCreator = actor.UserID != "" && record.CreatedBy == actor.UserID

	ids := []string{actor.UserID}
	if p != nil {
		ids = append(ids, p.ID)
	}
	flags.IsResponsibleParty = record.HasResponsible(ids...)

	return flags, nil
}

// ResolveForProject returns role flags for a record that does not exist yet
func (r *Resolver) ResolveForProject(ctx context.Context, actor entity.Actor, projectID string, m workflow.Module) (workflow.RoleFlags, error) {
	p, err := r.lookup(ctx, actor.UserID, projectID)
	if err != nil {
		return workflow.RoleFlags{}, err
	}
	return baseFlags(actor, p, m), nil
}

// Personnel returns the caller's personnel row in the project, or nil
func (r *Resolver) Personnel(ctx context.Context, userID, projectID string) (*entity.Personnel, error) {
	return r.lookup(ctx, userID, projectID)
}

// Invalidate drops the cached lookup for a user in a project
func (r *Resolver) Invalidate(userID, projectID string) {
	r.mu.Lock()
	delete(r.cache, cacheKey{userID: userID, projectID: projectID})
	r.mu.Unlock()
}

// baseFlags derives the flags that do not depend on a record's slots.
// A missing personnel row leaves every project flag false.
func baseFlags(actor entity.Actor, p *entity.Personnel, m workflow.Module) workflow.RoleFlags {
	flags := workflow.RoleFlags{IsAdmin: actor.IsSystemAdmin()}
	if p == nil {
		return flags
	}
	flags.IsMember = true
	flags.IsApprover = p.ApprovesModule(m) || p.IsProjectOwner || flags.IsAdmin
	return flags
}

func (r *Resolver) lookup(ctx context.Context, userID, projectID string) (*entity.Personnel, error) {
	if userID == "" || projectID == "" {
		return nil, nil
	}

	key := cacheKey{userID: userID, projectID: projectID}

	if r.cacheTTL > 0 {
		r.mu.RLock()
		entry, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			if r.now().Sub(entry.loadedAt) < r.cacheTTL {
				return entry.personnel, nil
			}
			r.evict(key, entry.loadedAt)
		}
	}

	p, err := r.personnel.GetByUserAndProject(ctx, userID, projectID)
	if err != nil {
		return nil, &workflow.StoreError{Op: "get personnel", Err: fmt.Errorf("user %s in project %s: %w", userID, projectID, err)}
	}

	if r.cacheTTL > 0 {
		now := r.now()
		r.mu.Lock()
		r.cache[key] = cacheEntry{personnel: p, loadedAt: now}
		if now.Sub(r.lastSweep) >= r.cacheTTL {
			r.sweep(now)
		}
		r.mu.Unlock()
	}

	return p, nil
}

// evict drops an expired entry unless it was refreshed meanwhile
func (r *Resolver) evict(key cacheKey, loadedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.cache[key]; ok && entry.loadedAt.Equal(loadedAt) {
		delete(r.cache, key)
	}
}

// sweep drops every expired entry. Callers hold mu.
func (r *Resolver) sweep(now time.Time) {
	for key, entry := range r.cache {
		if now.Sub(entry.loadedAt) >= r.cacheTTL {
			delete(r.cache, key)
		}
	}
	r.lastSweep = now
}
