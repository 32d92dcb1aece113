// Package lazy defers module loading and dependency installation until first
// real use. A deferred-entry scope is opened for a requirement locator
// ("owner:requirements.txt"); modules imported through the scope come back as
// proxies. First attribute access on any proxy installs the group's
// requirements (once, no matter how many modules or goroutines race) and
// unlocks the whole group, while each module's actual evaluation stays lazy
// and per-module. Raw loads of claimed modules before the group unlocks fail
// with ErrImportBlocked rather than silently succeeding in environments where
// the dependencies happen to be present already.
package lazy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lazymod/internal/loader"
	"lazymod/internal/locator"
)

// Classification is the registry's verdict on a module-load request.
type Classification int

const (
	// ClassPassThrough means the name is unclaimed, or its group is already
	// unlocked; loading proceeds normally.
	ClassPassThrough Classification = iota

	// ClassDeferred means the name is claimed by a group that has not
	// unlocked. A scope import yields a proxy; a raw load is blocked.
	ClassDeferred
)

// Registry is the process-wide table of import groups and the module names
// they claim. It is an injected service object, not a hidden global;
// construct one per process (or per test) and open scopes through it.
type Registry struct {
	catalog *loader.Catalog
	gateway Installer
	logger  *zap.Logger

	mu     sync.RWMutex
	groups map[string]*Group // keyed by locator string
	claims map[string]*Group // keyed by leading module name

	gateOnce sync.Once
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger, shared with the groups it creates.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry over a module catalog and an installer
// gateway.
func NewRegistry(catalog *loader.Catalog, gateway Installer, opts ...RegistryOption) *Registry {
	r := &Registry{
		catalog: catalog,
		gateway: gateway,
		logger:  zap.NewNop(),
		groups:  make(map[string]*Group),
		claims:  make(map[string]*Group),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enter opens a deferred-entry scope for a locator. Malformed locators and
// missing requirement resources fail here, before any proxy exists. Scopes
// opened with the same locator string share one group: installing through
// one scope unlocks modules claimed through any other.
func (r *Registry) Enter(loc string) (*Scope, error) {
	parsed, err := locator.Parse(loc)
	if err != nil {
		return nil, err
	}

	group, err := r.lookup(parsed)
	if err != nil {
		return nil, err
	}

	// The interception rule goes in once, the first time any scope is used,
	// and stays for the life of the process.
	r.gateOnce.Do(func() {
		r.catalog.AddResolver(r)
		r.logger.Debug("import gate installed")
	})

	return &Scope{registry: r, group: group}, nil
}

// lookup returns the singleton group for a locator, creating and verifying it
// on first reference.
func (r *Registry) lookup(parsed locator.Locator) (*Group, error) {
	key := parsed.String()

	r.mu.RLock()
	group, ok := r.groups[key]
	r.mu.RUnlock()
	if ok {
		return group, nil
	}

	// Verify outside the lock; resource lookup touches the filesystem.
	source := locator.NewSource(parsed, r.catalog.Dir)
	if err := source.Verify(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := r.groups[key]; ok {
		return group, nil
	}
	group = newGroup(source, r.gateway, r.catalog, r.logger)
	r.groups[key] = group
	r.logger.Debug("import group created", zap.String("locator", key))
	return group, nil
}

// Classify reports how a load request for the name would be treated. The
// leading path component decides: "pak.bar" is governed by whoever claims
// "pak".
func (r *Registry) Classify(name string) Classification {
	if g := r.owner(name); g != nil && !g.Unlocked() {
		return ClassDeferred
	}
	return ClassPassThrough
}

// Resolve implements loader.Resolver: the gate consulted on every raw module
// load. Claimed names whose group is still locked fail loudly; everything
// else passes through.
func (r *Registry) Resolve(name string) error {
	g := r.owner(name)
	if g == nil || g.Unlocked() {
		return nil
	}
	return fmt.Errorf("%w: %s (group %s)", ErrImportBlocked, name, g.Locator())
}

// Groups returns all known groups sorted by locator, for inspection.
func (r *Registry) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Locator().String() < groups[j].Locator().String()
	})
	return groups
}

// owner returns the group claiming the name's leading component, or nil.
func (r *Registry) owner(name string) *Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.claims[leadingName(name)]
}

// claim registers a module name as owned by a group. A name maps to at most
// one group for the life of the process.
func (r *Registry) claim(name string, group *Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.claims[name]; ok {
		if existing != group {
			return fmt.Errorf("%w: %s is owned by %s, refused for %s",
				ErrClaimConflict, name, existing.Locator(), group.Locator())
		}
		return nil
	}
	r.claims[name] = group
	r.logger.Debug("module claimed",
		zap.String("module", name),
		zap.String("locator", group.Locator().String()))
	return nil
}

// leadingName returns the first component of a dotted module path.
func leadingName(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}
