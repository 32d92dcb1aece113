package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func writeModule(t *testing.T, base, name, src string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name+".go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestWatcherSeesPendingEdit(t *testing.T) {
	defer goleak.VerifyNone(t)

	base := t.TempDir()
	path := writeModule(t, base, "pak", "package pak\n\nfunc DoPak() string { return \"v1\" }\n")

	catalog := NewCatalog([]string{base}, zap.NewNop())
	w, err := NewWatcher(catalog, zap.NewNop())
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Edit before first load: no stale warning, just a pending edit.
	require.NoError(t, os.WriteFile(path, []byte("package pak\n\nfunc DoPak() string { return \"v2\" }\n"), 0644))

	require.Eventually(t, func() bool {
		return w.Stats().PendingEdits > 0
	}, 5*time.Second, 20*time.Millisecond, "edit never observed")
	require.Zero(t, w.Stats().StaleWarning)

	// The next load picks up the new sources.
	m, err := catalog.Load("pak")
	require.NoError(t, err)
	out, err := m.Call(ctx, "DoPak")
	require.NoError(t, err)
	require.Equal(t, "v2", out[0])
}

func TestWatcherFlagsStaleModule(t *testing.T) {
	defer goleak.VerifyNone(t)

	base := t.TempDir()
	path := writeModule(t, base, "pak", "package pak\n\nfunc DoPak() string { return \"v1\" }\n")

	catalog := NewCatalog([]string{base}, zap.NewNop())
	_, err := catalog.Load("pak")
	require.NoError(t, err)

	w, err := NewWatcher(catalog, zap.NewNop())
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("package pak\n\nfunc DoPak() string { return \"v2\" }\n"), 0644))

	require.Eventually(t, func() bool {
		return w.Stats().StaleWarning > 0
	}, 5*time.Second, 20*time.Millisecond, "stale module never flagged")

	// Cached handle stays live and keeps its original behavior.
	m, err := catalog.Load("pak")
	require.NoError(t, err)
	out, err := m.Call(ctx, "DoPak")
	require.NoError(t, err)
	require.Equal(t, "v1", out[0])
}
