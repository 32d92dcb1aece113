package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lazymod/internal/locator"
)

// planCmd renders what installing a locator's requirements would change,
// without touching the environment.
var planCmd = &cobra.Command{
	Use:   "plan [locator]",
	Short: "Show what installing a requirement locator would change (dry run)",
	Long: `Resolves a locator of the form "owner:requirements.txt" and asks the
installer for a dry-run report. Nothing is installed; the output is the list
of packages an install would add, suitable for a confirmation prompt.

Example:
  lazymod plan pak:requirements.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

// installCmd eagerly installs a locator's requirements, the escape hatch for
// environments that want dependencies in place before any lazy trigger.
var installCmd = &cobra.Command{
	Use:   "install [locator]",
	Short: "Install a requirement locator's dependencies now",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func resolveSpecifiers(arg string) ([]string, locator.Locator, error) {
	loc, err := locator.Parse(arg)
	if err != nil {
		return nil, locator.Locator{}, err
	}
	// Requirements are always located through the catalog, never by path.
	source := locator.NewSource(loc, newCatalog().Dir)
	specs, err := source.Specifiers()
	if err != nil {
		return nil, locator.Locator{}, err
	}
	return specs, loc, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	specs, loc, err := resolveSpecifiers(args[0])
	if err != nil {
		return err
	}
	logger.Debug("planning install", zap.String("locator", loc.String()), zap.Int("specifiers", len(specs)))

	report, err := newGateway().DryRun(cmd.Context(), specs)
	if err != nil {
		return err
	}
	fmt.Println(report.Render())
	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	specs, loc, err := resolveSpecifiers(args[0])
	if err != nil {
		return err
	}

	if err := newGateway().Apply(cmd.Context(), specs); err != nil {
		return err
	}
	fmt.Printf("Installed %d requirement(s) for %s\n", len(specs), loc)
	return nil
}
