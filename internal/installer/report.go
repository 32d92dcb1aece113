package installer

import (
	"fmt"
	"strings"
)

// PlannedInstall is one package the installer would add or change.
type PlannedInstall struct {
	Name    string
	Version string
	Summary string
}

// ChangeReport is the outcome of a dry run: the ordered list of packages an
// apply would install. An empty report means the environment already
// satisfies the requirements.
type ChangeReport struct {
	RunID    string
	Installs []PlannedInstall
}

// Empty reports whether an apply would make no changes.
func (r *ChangeReport) Empty() bool {
	return len(r.Installs) == 0
}

// Render formats the report one planned install per line, for confirmation
// prompts and logs.
func (r *ChangeReport) Render() string {
	if r.Empty() {
		return "nothing to install"
	}
	var b strings.Builder
	for _, p := range r.Installs {
		fmt.Fprintf(&b, "installing %s==%s", p.Name, p.Version)
		if p.Summary != "" {
			fmt.Fprintf(&b, " (%s)", p.Summary)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
