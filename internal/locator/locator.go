// Package locator resolves requirement locators of the form "owner:resource",
// where owner is a module name known to the catalog and resource is a plain
// text requirements file inside that module's directory.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrBadLocator is returned for locators not of the form "owner:resource".
	ErrBadLocator = errors.New("malformed locator, want owner:resource")

	// ErrRequirementNotFound is returned when the owner module or the named
	// resource does not exist.
	ErrRequirementNotFound = errors.New("requirement resource not found")
)

// Locator identifies a requirements resource owned by a module.
type Locator struct {
	Owner    string
	Resource string
}

// Parse splits a locator string on its last colon.
// Both the owner and the resource part are required.
func Parse(s string) (Locator, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Locator{}, fmt.Errorf("%w: %q", ErrBadLocator, s)
	}
	owner, resource := s[:idx], s[idx+1:]
	if owner == "" || resource == "" {
		return Locator{}, fmt.Errorf("%w: %q", ErrBadLocator, s)
	}
	if strings.ContainsAny(resource, "/\\") {
		return Locator{}, fmt.Errorf("%w: resource must be a plain file name: %q", ErrBadLocator, s)
	}
	return Locator{Owner: owner, Resource: resource}, nil
}

// String returns the canonical locator string. Two sources built from equal
// strings address the same resource.
func (l Locator) String() string {
	return l.Owner + ":" + l.Resource
}

// DirFinder locates the directory of a module by name.
type DirFinder func(name string) (string, error)

// Source resolves a locator to an ordered list of dependency specifiers.
// It is immutable; identity is the locator string.
type Source struct {
	loc  Locator
	find DirFinder
}

// NewSource builds a Source for loc. The finder maps the owner module name to
// its directory; requirements are always located through it, never by a bare
// filesystem path.
func NewSource(loc Locator, find DirFinder) *Source {
	return &Source{loc: loc, find: find}
}

// Locator returns the locator this source reads from.
func (s *Source) Locator() Locator { return s.loc }

// Verify checks that the owner module and the resource exist without reading
// the specifiers. Used at scope-enter so missing requirements fail fast.
func (s *Source) Verify() error {
	_, err := s.path()
	return err
}

// Specifiers reads the resource as newline-delimited dependency specifiers.
// Blank lines and '#' comments are skipped; order is preserved.
func (s *Source) Specifiers() ([]string, error) {
	path, err := s.path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRequirementNotFound, s.loc, err)
	}

	var specs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		specs = append(specs, line)
	}
	return specs, nil
}

func (s *Source) path() (string, error) {
	dir, err := s.find(s.loc.Owner)
	if err != nil {
		return "", fmt.Errorf("%w: no module %q: %v", ErrRequirementNotFound, s.loc.Owner, err)
	}
	path := filepath.Join(dir, s.loc.Resource)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrRequirementNotFound, s.loc)
	}
	return path, nil
}
