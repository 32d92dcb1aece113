package lazy

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"lazymod/internal/loader"
)

// fakeInstaller counts Apply calls and records the specifiers it saw. It can
// be told to fail, and to dawdle so concurrent triggers really overlap.
type fakeInstaller struct {
	mu      sync.Mutex
	applies int
	specs   [][]string
	err     error
	delay   time.Duration
}

func (f *fakeInstaller) Apply(ctx context.Context, specifiers []string) error {
	f.mu.Lock()
	f.applies++
	f.specs = append(f.specs, append([]string(nil), specifiers...))
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (f *fakeInstaller) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applies
}

func (f *fakeInstaller) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeInstaller) lastSpecs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.specs) == 0 {
		return nil
	}
	return f.specs[len(f.specs)-1]
}

// newTestRegistry builds a fresh registry per test so claims and groups never
// leak between cases.
func newTestRegistry(t *testing.T) (*Registry, *loader.Catalog, *fakeInstaller) {
	t.Helper()
	catalog := loader.NewCatalog([]string{"testdata/modules"}, zap.NewNop())
	installer := &fakeInstaller{}
	registry := NewRegistry(catalog, installer)
	return registry, catalog, installer
}
