package tenant

import (
	"context"
	"sort"
	"sync"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	"github.com/smallbiznis/moiledger/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handle binds one (organization, kind) pair to its physical table.
type Handle struct {
	name    string
	orgName string
	kind    EntityKind
	schema  *Schema
	db      *gorm.DB

	mu      sync.Mutex
	ensured bool
}

func (h *Handle) Name() string { return h.name }
func (h *Handle) Kind() EntityKind { return h.kind }
func (h *Handle) Schema() *Schema { return h.schema }

// DB returns a session bound to the handle's table. The session is safe to
// reuse for several queries.
func (h *Handle) DB(ctx context.Context) *gorm.DB {
	return h.db.WithContext(ctx).Table(h.name).Session(&gorm.Session{})
}

// With binds an open transaction to the handle's table.
func (h *Handle) With(tx *gorm.DB) *gorm.DB {
	return tx.Table(h.name).Session(&gorm.Session{})
}

// Exists reports whether the table is present in storage.
func (h *Handle) Exists(ctx context.Context) bool {
	return h.db.WithContext(ctx).Migrator().HasTable(h.name)
}

// Ensure creates the table when missing. It touches storage until the first
// success and is a no-op afterwards.
func (h *Handle) Ensure(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ensured {
		return false, nil
	}

	if h.Exists(ctx) {
		h.ensured = true
		return false, nil
	}

	migrator := h.db.WithContext(ctx).Table(h.name).Migrator()
	if err := migrator.CreateTable(h.schema.New()); err != nil {
		// another process may have won the race
		if db.IsAlreadyExistsErr(err) || h.Exists(ctx) {
			h.ensured = true
			return false, nil
		}
		return false, apperr.Internal(err, "create table %s", h.name)
	}

	h.ensured = true
	return true, nil
}

func (h *Handle) forget() {
	h.mu.Lock()
	h.ensured = false
	h.mu.Unlock()
}

// Resolver owns the process-wide cache of tenant handles.
type Resolver struct {
	db       *gorm.DB
	registry *Registry
	log      *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

func NewResolver(db *gorm.DB, registry *Registry, log *zap.Logger) *Resolver {
	return &Resolver{
		db:       db,
		registry: registry,
		log:      log.Named("tenant.resolver"),
		handles:  map[string]*Handle{},
	}
}

// Resolve returns the handle of (orgName, kind), binding it on first use.
// Binding does not touch storage.
func (r *Resolver) Resolve(orgName string, kind EntityKind) (*Handle, error) {
	if !ValidOrgName(orgName) {
		return nil, apperr.Configuration("invalid_org_name", "organization name %q must match [a-z0-9_]+", orgName)
	}
	schema, err := r.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}

	name := CollectionName(orgName, kind)

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		return h, nil
	}

	h := &Handle{
		name:    name,
		orgName: orgName,
		kind:    kind,
		schema:  schema,
		db:      r.db,
	}
	r.handles[name] = h
	r.log.Debug("bound tenant collection", zap.String("collection", name))
	return h, nil
}

// Open resolves the handle and makes sure its table exists. A table created
// here also gets the kind's index set; index failures are logged and left to
// the repair sweep.
func (r *Resolver) Open(ctx context.Context, orgName string, kind EntityKind) (*Handle, error) {
	h, err := r.Resolve(orgName, kind)
	if err != nil {
		return nil, err
	}
	created, err := h.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	if created {
		r.log.Info("created tenant collection on first access", zap.String("collection", h.Name()))
		for _, spec := range indexSet[kind] {
			ensureIndex(ctx, h, spec, r.log)
		}
	}
	return h, nil
}

// OpenFromContext opens kind for the organization carried by ctx.
func (r *Resolver) OpenFromContext(ctx context.Context, kind EntityKind) (*Handle, error) {
	orgName, ok := orgcontext.OrgNameFromContext(ctx)
	if !ok || orgName == "" {
		return nil, apperr.Configuration("missing_tenant", "organization name is missing from context")
	}
	return r.Open(ctx, orgName, kind)
}

// Evict drops the cached handles of orgName and returns how many were removed.
func (r *Resolver) Evict(orgName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, h := range r.handles {
		if h.orgName == orgName {
			h.forget()
			delete(r.handles, name)
			removed++
		}
	}
	return removed
}

// Handles lists the bound collection names.
func (r *Resolver) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.handles))
	for name := range r.handles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
