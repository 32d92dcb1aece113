package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lazymod/internal/lazy"
)

// runCmd demonstrates the full deferred path: open a scope, import a module
// lazily, and let the first call trigger install + load.
var runCmd = &cobra.Command{
	Use:   "run [locator] [module.Symbol] [args...]",
	Short: "Call a module symbol through a deferred import scope",
	Long: `Opens a deferred-entry scope for the locator, imports the module
lazily, and calls the named symbol. The group's requirements are installed on
this first use, then the module is evaluated and the call forwarded.

Example:
  lazymod run pak:requirements.txt pak.DoPak`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSymbol,
}

// modulesCmd lists discoverable modules and how the registry classifies them.
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List discoverable modules and import-group claims",
	RunE:  listModules,
}

func runSymbol(cmd *cobra.Command, args []string) error {
	target := args[1]
	idx := strings.LastIndex(target, ".")
	if idx <= 0 || idx == len(target)-1 {
		return fmt.Errorf("target must be module.Symbol, got %q", target)
	}
	moduleName, symbol := target[:idx], target[idx+1:]

	registry, _ := newRegistry()
	scope, err := registry.Enter(args[0])
	if err != nil {
		return err
	}
	defer scope.Close()

	handle, err := scope.Import(moduleName)
	if err != nil {
		return err
	}
	logger.Info("deferred import ready; first call triggers resolution",
		zap.String("module", moduleName),
		zap.String("symbol", symbol))

	callArgs := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		callArgs = append(callArgs, a)
	}
	out, err := handle.Call(cmd.Context(), symbol, callArgs...)
	if err != nil {
		return err
	}
	for _, v := range out {
		fmt.Println(v)
	}
	return nil
}

func listModules(cmd *cobra.Command, args []string) error {
	registry, catalog := newRegistry()

	names := catalog.List()
	if len(names) == 0 {
		fmt.Println("No modules found under:", strings.Join(cfg.ModulePaths, ", "))
		return nil
	}
	for _, name := range names {
		switch registry.Classify(name) {
		case lazy.ClassDeferred:
			fmt.Printf("%s\t(deferred)\n", name)
		default:
			fmt.Println(name)
		}
	}

	for _, g := range registry.Groups() {
		fmt.Printf("group %s\tstate=%s\tclaims=%s\n",
			g.Locator(), g.State(), strings.Join(g.Claimed(), ","))
	}
	return nil
}
