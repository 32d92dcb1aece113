// Package installer shells out to an external package installer (pip by
// default) for a list of dependency specifiers. It offers a dry-run mode that
// reports what an install would change without touching the environment, and
// an apply mode that performs the real install.
package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCommand is the installer invoked when none is configured.
const DefaultCommand = "pip"

// InstallError carries the diagnostics of a failed installer invocation.
type InstallError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("installer %s failed (exit %d)", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// Gateway invokes the external installer. It holds no state about what has
// been installed; callers own retry policy.
type Gateway struct {
	command   string
	extraArgs []string
	logger    *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCommand overrides the installer binary.
func WithCommand(command string) Option {
	return func(g *Gateway) {
		if command != "" {
			g.command = command
		}
	}
}

// WithExtraArgs appends arguments to every installer invocation.
func WithExtraArgs(args ...string) Option {
	return func(g *Gateway) { g.extraArgs = append(g.extraArgs, args...) }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a Gateway with the given options.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		command: DefaultCommand,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DryRun reports what installing the specifiers would change. It never
// mutates the environment; the report is suitable for a confirmation prompt.
func (g *Gateway) DryRun(ctx context.Context, specifiers []string) (*ChangeReport, error) {
	if len(specifiers) == 0 {
		return &ChangeReport{}, nil
	}

	runID := uuid.NewString()
	tmpDir, err := os.MkdirTemp("", "lazymod-dryrun-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	reqFile, err := writeRequirements(tmpDir, specifiers)
	if err != nil {
		return nil, err
	}
	reportFile := filepath.Join(tmpDir, "report.json")

	args := g.buildArgs("install", "--dry-run", "--no-deps", "--report", reportFile, "-r", reqFile)
	g.logger.Debug("installer dry run",
		zap.String("run_id", runID),
		zap.String("command", g.command),
		zap.Int("specifiers", len(specifiers)))

	if err := g.run(ctx, args); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(reportFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read install report: %w", err)
	}
	report, err := parseReport(data)
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	g.logger.Debug("installer dry run complete",
		zap.String("run_id", runID),
		zap.Int("planned", len(report.Installs)))
	return report, nil
}

// Apply installs the specifiers. Idempotent from the caller's point of view:
// an installer seeing already-satisfied requirements makes no changes.
func (g *Gateway) Apply(ctx context.Context, specifiers []string) error {
	if len(specifiers) == 0 {
		return nil
	}

	runID := uuid.NewString()
	tmpDir, err := os.MkdirTemp("", "lazymod-install-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	reqFile, err := writeRequirements(tmpDir, specifiers)
	if err != nil {
		return err
	}

	args := g.buildArgs("install", "-r", reqFile)
	g.logger.Info("installing requirements",
		zap.String("run_id", runID),
		zap.String("command", g.command),
		zap.Int("specifiers", len(specifiers)))

	if err := g.run(ctx, args); err != nil {
		g.logger.Error("install failed", zap.String("run_id", runID), zap.Error(err))
		return err
	}

	g.logger.Info("install complete", zap.String("run_id", runID))
	return nil
}

func (g *Gateway) buildArgs(subcommand string, rest ...string) []string {
	args := []string{subcommand}
	args = append(args, g.extraArgs...)
	args = append(args, rest...)
	return args
}

func (g *Gateway) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, g.command, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &InstallError{
			Command:  g.command,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderrBuf.String(),
			Err:      err,
		}
	}
	return nil
}

// writeRequirements writes the specifiers as a requirements file and returns
// its path. The installer only ever sees specifiers through this file.
func writeRequirements(dir string, specifiers []string) (string, error) {
	path := filepath.Join(dir, "requirements.txt")
	content := strings.Join(specifiers, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write requirements file: %w", err)
	}
	return path, nil
}

func parseReport(data []byte) (*ChangeReport, error) {
	var raw struct {
		Install []struct {
			Metadata struct {
				Name    string `json:"name"`
				Version string `json:"version"`
				Summary string `json:"summary"`
			} `json:"metadata"`
		} `json:"install"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse install report: %w", err)
	}

	report := &ChangeReport{}
	for _, entry := range raw.Install {
		report.Installs = append(report.Installs, PlannedInstall{
			Name:    entry.Metadata.Name,
			Version: entry.Metadata.Version,
			Summary: entry.Metadata.Summary,
		})
	}
	return report, nil
}
