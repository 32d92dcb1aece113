package lazy

import "errors"

// Lazy import errors.
var (
	// ErrImportBlocked is returned for a raw load of a module claimed by a
	// group that has not been unlocked yet. This is deliberate: the import
	// must not silently succeed just because the dependencies happen to be
	// present in this particular environment.
	ErrImportBlocked = errors.New("import explicitly disabled until import group resolves")

	// ErrClaimConflict is returned when a module name is imported under a
	// second, different import group. A name belongs to at most one group.
	ErrClaimConflict = errors.New("module already claimed by a different import group")

	// ErrScopeClosed is returned by Import on a closed scope.
	ErrScopeClosed = errors.New("deferred import scope already closed")
)
