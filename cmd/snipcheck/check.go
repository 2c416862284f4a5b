package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pdiddy/snipcheck/internal/check"
	"github.com/pdiddy/snipcheck/internal/discover"
	"github.com/pdiddy/snipcheck/internal/report"
	"github.com/pdiddy/snipcheck/pkg/types"
)

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Build and run the code examples of Markdown documents",
		Long: `Check extracts the fenced code blocks of the given Markdown files (directories
are scanned recursively for *.md), classifies them, builds and runs the
compilable ones in scratch directories, and prints a summary. With --output
a record per block is also written as JSON, JSON lines or YAML, chosen by the
file extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, cfg, err := a.resolve(args)
			if err != nil {
				return err
			}

			var progress io.Writer
			if p, _ := cmd.Flags().GetBool("progress"); p {
				progress = a.stderr
			}
			c, err := check.New(check.Options{Config: cfg, Logger: a.logger, Progress: progress})
			if err != nil {
				return failedError{err}
			}

			r, err := c.Run(cmd.Context(), paths)
			if err != nil {
				return failedError{err}
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			opts := report.TextOptions{Color: colorEnabled(a.stdout, noColor), Verbose: a.verbose}
			if err := report.WriteText(a.stdout, r, opts); err != nil {
				return failedError{err}
			}
			if out := a.v.GetString("output"); out != "" {
				if err := report.WriteFile(out, r); err != nil {
					return failedError{err}
				}
			}
			if r.Failed() {
				return failedError{}
			}
			return nil
		},
	}

	f := cmd.Flags()
	addClassifyFlags(f)
	addSandboxFlags(f)
	f.Duration("timeout", types.DefaultTimeout, "wall-clock limit for building and running one block")
	f.Int("jobs", types.DefaultJobs, "number of blocks run concurrently")
	f.StringP("output", "o", "", "write a machine-readable report (.json, .jsonl, .yaml)")
	f.Int("output-limit", types.DefaultOutputLimit, "bytes of stdout and stderr kept per block")
	f.String("scratch-dir", "", "parent directory for scratch files (default: system temp dir)")
	f.Bool("no-color", false, "disable coloured output")
	f.Bool("progress", false, "print a line to stderr as each block finishes")
	return cmd
}

func addClassifyFlags(f *pflag.FlagSet) {
	f.StringSlice("marker", types.DefaultMarkers, "hazard marker that excludes a block (repeatable)")
	f.StringSlice("lang", nil, "only execute blocks in these languages (repeatable)")
}

func addSandboxFlags(f *pflag.FlagSet) {
	f.String("isolation", string(types.IsolationHost), "where toolchains run: host or container")
	f.String("runtime", "", "container runtime: docker or podman (default: detect)")
}

// resolve expands args into documents and loads the configuration.
func (a *app) resolve(args []string) ([]string, types.CheckConfig, error) {
	if len(args) == 0 {
		return nil, types.CheckConfig{}, usageErrorf("no paths given")
	}
	paths, err := discover.Paths(args)
	if err != nil {
		return nil, types.CheckConfig{}, usageError{err}
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	return paths, cfg, nil
}

func colorEnabled(w io.Writer, disabled bool) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return report.ColorEnabled(f, disabled)
}
