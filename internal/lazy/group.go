package lazy

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"lazymod/internal/loader"
	"lazymod/internal/locator"
)

// State is the resolution state of an import group.
type State int32

const (
	// StateLocked is the initial state: requirements not installed, raw loads
	// of claimed modules blocked.
	StateLocked State = iota

	// StateResolving is the transient state while the winning trigger runs
	// the installer.
	StateResolving

	// StateUnlocked is terminal: requirements installed, claimed modules load
	// like any other.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateResolving:
		return "resolving"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// SpecifierSource yields the dependency specifiers of a group.
type SpecifierSource interface {
	Locator() locator.Locator
	Specifiers() ([]string, error)
}

// Installer applies a list of dependency specifiers to the environment.
type Installer interface {
	Apply(ctx context.Context, specifiers []string) error
}

// Group coordinates one set of modules sharing one requirement source. All
// scopes opened with the same locator share one Group for the life of the
// process, so installation runs at most once no matter how many modules or
// goroutines trigger it.
type Group struct {
	source  SpecifierSource
	gateway Installer
	catalog *loader.Catalog
	logger  *zap.Logger

	state  atomic.Int32
	flight singleflight.Group

	mu      sync.Mutex
	claimed map[string]struct{}
	modules map[string]*loader.Module
}

func newGroup(source SpecifierSource, gateway Installer, catalog *loader.Catalog, logger *zap.Logger) *Group {
	return &Group{
		source:  source,
		gateway: gateway,
		catalog: catalog,
		logger:  logger,
		claimed: make(map[string]struct{}),
		modules: make(map[string]*loader.Module),
	}
}

// Locator identifies the group's requirement source.
func (g *Group) Locator() locator.Locator { return g.source.Locator() }

// State returns the current resolution state.
func (g *Group) State() State { return State(g.state.Load()) }

// Unlocked reports whether the group's requirements are installed.
func (g *Group) Unlocked() bool { return g.State() == StateUnlocked }

// Claimed returns the module names claimed by this group, sorted.
func (g *Group) Claimed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.claimed))
	for name := range g.claimed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Group) addClaim(name string) {
	g.mu.Lock()
	g.claimed[name] = struct{}{}
	g.mu.Unlock()
}

// Resolve installs the group's requirements and unlocks the group. Safe under
// concurrent triggers: exactly one caller runs the installer, everyone else
// blocks until that attempt finishes and observes its outcome. A caller
// cannot cancel a resolution it did not start; the loser's context is
// deliberately not consulted while it waits. On failure the group reverts to
// locked so a later trigger may retry.
func (g *Group) Resolve(ctx context.Context) error {
	if g.Unlocked() {
		return nil
	}

	_, err, shared := g.flight.Do("resolve", func() (any, error) {
		// A previous winner may have finished between the state check and
		// joining the flight.
		if g.Unlocked() {
			return nil, nil
		}
		return nil, g.install(ctx)
	})
	if shared && err != nil {
		g.logger.Debug("joined failed resolution", zap.String("locator", g.Locator().String()))
	}
	return err
}

// install runs the winner's side of a resolution attempt. The singleflight
// group guarantees at most one install executes at a time, which makes the
// locked->resolving swap below effectively a test-and-set.
func (g *Group) install(ctx context.Context) error {
	loc := g.Locator().String()
	g.state.CompareAndSwap(int32(StateLocked), int32(StateResolving))

	specs, err := g.source.Specifiers()
	if err != nil {
		g.state.Store(int32(StateLocked))
		return err
	}

	g.logger.Info("resolving import group",
		zap.String("locator", loc),
		zap.Int("specifiers", len(specs)))

	if err := g.gateway.Apply(ctx, specs); err != nil {
		g.state.Store(int32(StateLocked))
		g.logger.Warn("import group resolution failed, group stays locked",
			zap.String("locator", loc), zap.Error(err))
		return err
	}

	g.state.Store(int32(StateUnlocked))
	g.logger.Info("import group unlocked",
		zap.String("locator", loc),
		zap.Strings("claimed", g.Claimed()))
	return nil
}

// Load resolves the group if needed, then loads one specific module. Sibling
// modules of the group are not touched; unlocking is group-wide but loading
// stays per-module and lazy.
func (g *Group) Load(ctx context.Context, name string) (*loader.Module, error) {
	if err := g.Resolve(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if m, ok := g.modules[name]; ok {
		g.mu.Unlock()
		return m, nil
	}
	g.mu.Unlock()

	// The group is unlocked, so this passes the registry gate and returns
	// the same handle a raw load would. A load failure here does not re-lock
	// the group: the install succeeded, only this module is broken.
	m, err := g.catalog.Load(name)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.modules[name] = m
	g.mu.Unlock()
	return m, nil
}
