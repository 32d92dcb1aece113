// Package loader discovers and evaluates plugin modules. Modules are
// directories of Go source under configured search paths, interpreted with
// yaegi at load time; a dotted name maps to a nested directory
// ("pak.bar" -> pak/bar). Registered resolvers are consulted before every
// load, which is the seam the lazy-import machinery hooks into.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

var (
	// ErrModuleNotFound is returned when no search path contains the module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrSymbolNotFound is returned when a loaded module has no such symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Resolver is consulted before the catalog's normal load path. A non-nil
// error aborts the load; nil lets it proceed. Resolvers must not call back
// into the catalog.
type Resolver interface {
	Resolve(name string) error
}

// Catalog finds and loads modules. Loaded modules are cached by name; a
// module's sources are evaluated exactly once per process and the cached
// handle stays live for its lifetime.
type Catalog struct {
	mu        sync.RWMutex
	paths     []string
	modules   map[string]*Module
	resolvers []Resolver
	logger    *zap.Logger
}

// NewCatalog creates a catalog over the given search paths.
func NewCatalog(paths []string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		paths:   paths,
		modules: make(map[string]*Module),
		logger:  logger,
	}
}

// AddResolver registers a resolver consulted on every load, ahead of the
// normal path. Later registrations are consulted first.
func (c *Catalog) AddResolver(r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolvers = append([]Resolver{r}, c.resolvers...)
}

// Dir returns the directory backing a dotted module name.
func (c *Catalog) Dir(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrModuleNotFound)
	}
	rel := filepath.Join(strings.Split(name, ".")...)
	for _, base := range c.paths {
		dir := filepath.Join(base, rel)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %q (searched %d paths)", ErrModuleNotFound, name, len(c.paths))
}

// Loaded reports whether a module is already evaluated and cached.
func (c *Catalog) Loaded(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.modules[name]
	return ok
}

// List returns the names of top-level modules discoverable under the search
// paths, sorted.
func (c *Catalog) List() []string {
	seen := make(map[string]bool)
	for _, base := range c.paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				seen[e.Name()] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the module for a dotted name, evaluating its sources on first
// use. Every load, cached or not, passes the resolver chain first.
func (c *Catalog) Load(name string) (*Module, error) {
	c.mu.RLock()
	resolvers := c.resolvers
	c.mu.RUnlock()
	for _, r := range resolvers {
		if err := r.Resolve(name); err != nil {
			return nil, err
		}
	}
	return c.load(name)
}

// load is the normal load path, after the resolver chain has passed.
func (c *Catalog) load(name string) (*Module, error) {
	c.mu.RLock()
	if m, ok := c.modules[name]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.modules[name]; ok {
		return m, nil
	}

	dir, err := c.Dir(name)
	if err != nil {
		return nil, err
	}

	m, err := c.evaluate(name, dir)
	if err != nil {
		return nil, err
	}
	c.modules[name] = m
	c.logger.Debug("loaded module", zap.String("module", name), zap.String("dir", dir))
	return m, nil
}

// evaluate reads the module's Go sources and runs them through a fresh
// interpreter. A directory without sources becomes a namespace module.
func (c *Catalog) evaluate(name, dir string) (*Module, error) {
	sources, err := moduleSources(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %q: %w", name, err)
	}
	if len(sources) == 0 {
		return &Module{name: name, dir: dir, catalog: c}, nil
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	for _, path := range sources {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if _, err := i.Eval(rewritePackageClause(string(data))); err != nil {
			return nil, fmt.Errorf("module %q: evaluation of %s failed: %w", name, filepath.Base(path), err)
		}
	}

	return &Module{name: name, dir: dir, catalog: c, eval: i}, nil
}

// moduleSources lists the module's non-test Go files in deterministic order.
func moduleSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		sources = append(sources, filepath.Join(dir, name))
	}
	sort.Strings(sources)
	return sources, nil
}

var packageClauseRe = regexp.MustCompile(`(?m)^package\s+\w+`)

// rewritePackageClause forces the source into package main so all files of a
// module land in one interpreter package and symbols resolve as "main.X".
func rewritePackageClause(src string) string {
	loc := packageClauseRe.FindStringIndex(src)
	if loc == nil {
		return src
	}
	return src[:loc[0]] + "package main" + src[loc[1]:]
}
