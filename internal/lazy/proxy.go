package lazy

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"lazymod/internal/loader"
)

// Proxy stands in for a module that has not been loaded yet. It exposes the
// same capability surface as a real module handle; the first access of any
// kind resolves the owning group (installing requirements if nobody has yet)
// and loads this proxy's module. Later accesses forward to the cached handle
// without re-checking group state.
//
// A proxy and its real module stay distinct objects, but every attribute
// reached through a resolved proxy is the very object the real handle
// exposes. Use Unwrap or Real to get the backing module itself.
type Proxy struct {
	name  string
	group *Group

	mu     sync.Mutex
	handle *loader.Module
}

func newProxy(name string, group *Group) *Proxy {
	return &Proxy{name: name, group: group}
}

// Name returns the dotted module name the proxy stands in for.
func (p *Proxy) Name() string { return p.name }

// Resolved reports whether the proxy already forwards to a real module.
func (p *Proxy) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

// Attr resolves the proxy if needed and reads an attribute of the module.
func (p *Proxy) Attr(ctx context.Context, name string) (reflect.Value, error) {
	m, err := p.resolve(ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	return m.Attr(ctx, name)
}

// Call resolves the proxy if needed and invokes a function symbol.
func (p *Proxy) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	m, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, name, args...)
}

// Sub traverses to a nested module. While unresolved it hands back another
// proxy chained into the same group, so dotted access stays lazy end to end.
func (p *Proxy) Sub(name string) (loader.Handle, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	if handle != nil {
		return handle.Sub(name)
	}
	return newProxy(p.name+"."+name, p.group), nil
}

// Unwrap returns the backing real module, triggering resolution first if
// needed.
func (p *Proxy) Unwrap(ctx context.Context) (*loader.Module, error) {
	return p.resolve(ctx)
}

// resolve loads the backing module. The lock is not held across the group
// load: concurrent triggers on one proxy must join the group's single
// in-flight resolution, not queue behind each other retrying it.
func (p *Proxy) resolve(ctx context.Context) (*loader.Module, error) {
	p.mu.Lock()
	if p.handle != nil {
		m := p.handle
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	m, err := p.group.Load(ctx, p.name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.handle == nil {
		p.handle = m
	}
	m = p.handle
	p.mu.Unlock()
	return m, nil
}

// Real unwraps any handle to its backing module: a real module comes back as
// is, a proxy resolves first.
func Real(ctx context.Context, h loader.Handle) (*loader.Module, error) {
	switch v := h.(type) {
	case *loader.Module:
		return v, nil
	case *Proxy:
		return v.Unwrap(ctx)
	default:
		return nil, fmt.Errorf("cannot unwrap handle of type %T", h)
	}
}
