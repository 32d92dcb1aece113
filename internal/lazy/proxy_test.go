package lazy

import (
	"context"
	"errors"
	"testing"
)

// P3: the proxy and the real module are distinct objects, the explicit
// unwrap returns the real module, and attributes reached through either are
// the same underlying objects.
func TestProxyIdentity(t *testing.T) {
	registry, catalog, _ := newTestRegistry(t)
	ctx := context.Background()

	scope, err := registry.Enter("pak:requirements.txt")
	if err != nil {
		t.Fatal(err)
	}
	handle, err := scope.Import("pak")
	if err != nil {
		t.Fatal(err)
	}
	proxy, ok := handle.(*Proxy)
	if !ok {
		t.Fatalf("Import returned %T before unlock, want *Proxy", handle)
	}
	if proxy.Resolved() {
		t.Fatal("proxy resolved before first access")
	}

	// First access resolves.
	viaProxy, err := proxy.Attr(ctx, "DoPak")
	if err != nil {
		t.Fatal(err)
	}
	if !proxy.Resolved() {
		t.Error("proxy still unresolved after attribute access")
	}

	real, err := catalog.Load("pak")
	if err != nil {
		t.Fatalf("raw load after unlock: %v", err)
	}

	unwrapped, err := proxy.Unwrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unwrapped != real {
		t.Error("Unwrap(proxy) != raw-loaded module")
	}

	fromReal, err := Real(ctx, real)
	if err != nil || fromReal != real {
		t.Errorf("Real(module) = %v, %v; want the module itself", fromReal, err)
	}
	fromProxy, err := Real(ctx, proxy)
	if err != nil || fromProxy != real {
		t.Errorf("Real(proxy) = %v, %v; want the real module", fromProxy, err)
	}

	viaReal, err := real.Attr(ctx, "DoPak")
	if err != nil {
		t.Fatal(err)
	}
	if viaProxy.Pointer() != viaReal.Pointer() {
		t.Error("proxy attribute and real attribute are different objects")
	}
}

// P4: within one unlocked group, each module is evaluated only on its own
// first use.
func TestIndependentExecution(t *testing.T) {
	registry, catalog, installer := newTestRegistry(t)
	ctx := context.Background()

	scope, err := registry.Enter("pak:requirements.txt")
	if err != nil {
		t.Fatal(err)
	}
	pak, err := scope.Import("pak")
	if err != nil {
		t.Fatal(err)
	}
	bar, err := scope.Import("pak.bar")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pak.Call(ctx, "DoPak"); err != nil {
		t.Fatal(err)
	}
	if !catalog.Loaded("pak") {
		t.Error("pak not loaded after its own first use")
	}
	if catalog.Loaded("pak.bar") {
		t.Error("pak.bar evaluated by sibling's trigger; execution must stay per-module")
	}

	out, err := bar.Call(ctx, "DoBar")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "hello msgpack" {
		t.Errorf("DoBar() = %v", out[0])
	}
	if got := installer.applyCount(); got != 1 {
		t.Errorf("installer ran %d times across sibling uses, want 1", got)
	}
}

// Dotted traversal on an unresolved proxy yields a chained proxy into the
// same group; after resolution it forwards to the real nested module.
func TestDottedTraversal(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	scope, err := registry.Enter("pak:requirements.txt")
	if err != nil {
		t.Fatal(err)
	}
	pak, err := scope.Import("pak")
	if err != nil {
		t.Fatal(err)
	}

	sub, err := pak.Sub("bar")
	if err != nil {
		t.Fatal(err)
	}
	chained, ok := sub.(*Proxy)
	if !ok {
		t.Fatalf("Sub before unlock returned %T, want *Proxy", sub)
	}
	if chained.Name() != "pak.bar" {
		t.Errorf("chained proxy name = %q, want pak.bar", chained.Name())
	}

	out, err := chained.Call(ctx, "DoBar")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "hello msgpack" {
		t.Errorf("DoBar() = %v", out[0])
	}

	// Post-resolution traversal goes straight to the real module.
	if _, err := pak.Call(ctx, "DoPak"); err != nil {
		t.Fatal(err)
	}
	sub2, err := pak.Sub("bar")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sub2.(*Proxy); ok {
		t.Error("Sub on a resolved proxy returned another proxy, want the real module")
	}
}

// A broken module surfaces its own load error without re-locking the group.
func TestModuleLoadFailureKeepsGroupUnlocked(t *testing.T) {
	registry, _, installer := newTestRegistry(t)
	ctx := context.Background()

	scope, err := registry.Enter("pak:requirements.txt")
	if err != nil {
		t.Fatal(err)
	}
	ghost, err := scope.Import("pak.ghost")
	if err != nil {
		t.Fatal(err)
	}

	_, err = ghost.Attr(ctx, "Anything")
	if err == nil {
		t.Fatal("loading a nonexistent module succeeded")
	}
	if errors.Is(err, ErrImportBlocked) {
		t.Errorf("load failure classified as blocked import: %v", err)
	}

	// The install already happened; the group must stay unlocked and other
	// modules keep working.
	if !scope.Group().Unlocked() {
		t.Error("group re-locked by a per-module load failure")
	}
	if got := installer.applyCount(); got != 1 {
		t.Errorf("installer ran %d times, want 1", got)
	}
	pak, err := scope.Import("pak")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pak.Call(ctx, "DoPak"); err != nil {
		t.Errorf("sibling load after failure: %v", err)
	}
}
