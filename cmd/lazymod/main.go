package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lazymod/internal/config"
	"lazymod/internal/installer"
	"lazymod/internal/lazy"
	"lazymod/internal/loader"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lazymod",
	Short: "lazymod - deferred plugin modules with grouped dependency installation",
	Long: `lazymod defers both the installation of a module group's declared
dependencies and the loading of the group's modules until first real use.

Modules are directories of Go source under the configured module paths,
evaluated with the yaegi interpreter on first access. A group is named by a
requirement locator of the form "owner:requirements.txt", where the resource
lives inside the owner module's directory.

Raw use of a group's modules before the group resolves fails loudly on
purpose, so missing dependency declarations surface in every environment,
not only on machines where the dependencies happen to be absent.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(logLevel())
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func logLevel() zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	switch cfg.Logging.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newCatalog() *loader.Catalog {
	return loader.NewCatalog(cfg.ModulePaths, logger.Named("loader"))
}

func newGateway() *installer.Gateway {
	return installer.NewGateway(
		installer.WithCommand(cfg.Installer.Command),
		installer.WithExtraArgs(cfg.Installer.ExtraArgs...),
		installer.WithLogger(logger.Named("installer")),
	)
}

func newRegistry() (*lazy.Registry, *loader.Catalog) {
	catalog := newCatalog()
	registry := lazy.NewRegistry(catalog, newGateway(), lazy.WithLogger(logger.Named("lazy")))
	return registry, catalog
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "lazymod.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modulesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
