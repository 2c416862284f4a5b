// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the snipcheck CLI.
// See docs/ARCHITECTURE § Pipeline Interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/snipcheck/internal/toolchain"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"timeout":      "timeout",
	"jobs":         "jobs",
	"output":       "output",
	"output-limit": "output_limit",
	"isolation":    "isolation",
	"runtime":      "container.runtime",
	"scratch-dir":  "scratch_dir",
	"marker":       "markers",
	"lang":         "languages",
}

// app holds the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer

	cfgFile string
	verbose bool
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snipcheck",
		Short: "Extract and verify the code examples in Markdown documentation",
		Long: `snipcheck extracts the fenced code blocks of Markdown documents, decides
which of them are meant to compile, builds and runs those in throwaway
scratch directories with a timeout, and reports the results.

Blocks that illustrate a bug are excluded by an explicit convention: an
info-string word or a preceding <!-- snipcheck: ... --> comment naming one
of skip, no-run, ub, compile-error, compile-fail, illustrative or bad, or a
configured hazard marker (UB!, DANGER, ...) in a comment or the paragraph
before the block.

Exit status is 0 when every executed block passed, 1 when a block failed
or a document is malformed, and 2 on usage errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger

			if err := a.bindFlags(cmd.Flags()); err != nil {
				return err
			}
			return a.initConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./snipcheck.yaml or ~/.config/snipcheck/snipcheck.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging; list prose-only blocks in the summary")

	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newToolchainsCmd(a))
	cmd.AddCommand(newVersionCmd(a))
	return cmd
}

func (a *app) bindFlags(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && err == nil {
			err = a.v.BindPFlag(key, f)
		}
	})
	return err
}

func (a *app) initConfig() error {
	v := a.v
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("snipcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "snipcheck"))
		}
	}

	v.SetEnvPrefix("SNIPCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && a.cfgFile == "" {
			return nil
		}
		return usageError{fmt.Errorf("reading config: %w", err)}
	}
	a.logger.Debug("using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}

// loadConfig decodes and validates the check configuration from flags,
// environment and config file.
func (a *app) loadConfig() (types.CheckConfig, error) {
	var cfg types.CheckConfig
	if err := a.v.Unmarshal(&cfg); err != nil {
		return cfg, usageError{fmt.Errorf("decoding config: %w", err)}
	}

	switch {
	case a.v.IsSet("timeout") && cfg.Timeout <= 0:
		return cfg, usageErrorf("invalid timeout %s: must be positive", cfg.Timeout)
	case a.v.IsSet("jobs") && cfg.Jobs < 1:
		return cfg, usageErrorf("invalid jobs %d: must be at least 1", cfg.Jobs)
	case a.v.IsSet("output_limit") && cfg.OutputLimit < 1:
		return cfg, usageErrorf("invalid output limit %d: must be positive", cfg.OutputLimit)
	}

	cfg = cfg.WithDefaults()
	if cfg.Isolation != types.IsolationHost && cfg.Isolation != types.IsolationContainer {
		return cfg, usageErrorf("invalid isolation %q: want %s or %s", cfg.Isolation, types.IsolationHost, types.IsolationContainer)
	}
	switch cfg.Container.Runtime {
	case "", "docker", "podman":
	default:
		return cfg, usageErrorf("invalid container runtime %q: want docker or podman", cfg.Container.Runtime)
	}
	if _, err := toolchain.NewRegistry(cfg.Toolchains); err != nil {
		return cfg, usageError{err}
	}
	return cfg, nil
}

// usageError marks bad arguments, flags or configuration (exit status 2).
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// failedError marks a run that failed (exit status 1). A nil err means the
// failure was already reported.
type failedError struct{ err error }

func (e failedError) Error() string {
	if e.err == nil {
		return "check failed"
	}
	return e.err.Error()
}

func (e failedError) Unwrap() error { return e.err }

// exitCode maps an Execute error to the process exit status. Errors that are
// not failedError come from bad usage, including cobra's own argument and
// flag errors.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var fe failedError
	if errors.As(err, &fe) {
		if fe.err != nil {
			fmt.Fprintln(stderr, "snipcheck:", fe.err)
		}
		return 1
	}
	fmt.Fprintln(stderr, "snipcheck:", err)
	return 2
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
