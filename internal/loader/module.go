package loader

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Handle is the capability surface shared by real modules and the lazy
// proxies standing in for them: named, attribute access, callable symbols,
// and nested-module traversal.
type Handle interface {
	Name() string
	Attr(ctx context.Context, name string) (reflect.Value, error)
	Call(ctx context.Context, name string, args ...any) ([]any, error)
	Sub(name string) (Handle, error)
}

// Module is a loaded module backed by a yaegi interpreter. A module with no
// Go sources (a pure namespace directory) has no symbols but still supports
// Sub traversal.
type Module struct {
	name    string
	dir     string
	catalog *Catalog
	eval    evaluator // nil for namespace modules

	mu      sync.Mutex
	symbols map[string]reflect.Value
}

type evaluator interface {
	Eval(src string) (reflect.Value, error)
}

// Name returns the dotted module name.
func (m *Module) Name() string { return m.name }

// Dir returns the directory the module was loaded from.
func (m *Module) Dir() string { return m.dir }

// Attr evaluates a package-level symbol of the module. The context is
// accepted for interface parity; a loaded module resolves attributes without
// blocking. Resolved symbols are cached, so repeated access to one name
// returns the identical value no matter which handle it goes through.
func (m *Module) Attr(_ context.Context, name string) (reflect.Value, error) {
	if m.eval == nil {
		return reflect.Value{}, fmt.Errorf("%w: namespace module %q has no symbols", ErrSymbolNotFound, m.name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.symbols[name]; ok {
		return v, nil
	}

	v, err := m.eval.Eval("main." + name)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s.%s: %v", ErrSymbolNotFound, m.name, name, err)
	}
	if m.symbols == nil {
		m.symbols = make(map[string]reflect.Value)
	}
	m.symbols[name] = v
	return v, nil
}

// Call invokes a function symbol of the module. If the function's last return
// value is a non-nil error it is returned as the call error. The function
// runs on its own goroutine so the context deadline is honored even for
// interpreted code that never checks it.
func (m *Module) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	fv, err := m.Attr(ctx, name)
	if err != nil {
		return nil, err
	}
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("symbol %s.%s is %s, not a function", m.name, name, fv.Kind())
	}

	ft := fv.Type()
	if !ft.IsVariadic() && ft.NumIn() != len(args) {
		return nil, fmt.Errorf("%s.%s takes %d arguments, got %d", m.name, name, ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	type callResult struct {
		out []reflect.Value
		err error
	}
	resultCh := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- callResult{err: fmt.Errorf("call %s.%s panicked: %v", m.name, name, r)}
			}
		}()
		resultCh <- callResult{out: fv.Call(in)}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return unpackResults(res.out)
	case <-ctx.Done():
		return nil, fmt.Errorf("call %s.%s: %w", m.name, name, ctx.Err())
	}
}

// Sub loads a nested module (directory) of this module.
func (m *Module) Sub(name string) (Handle, error) {
	sub, err := m.catalog.Load(m.name + "." + name)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func unpackResults(out []reflect.Value) ([]any, error) {
	var err error
	if n := len(out); n > 0 {
		last := out[n-1]
		if last.Type().Implements(errType) {
			out = out[:n-1]
			if !last.IsNil() {
				err = last.Interface().(error)
			}
		}
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
