package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/snipcheck/internal/check"
)

func newToolchainsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolchains",
		Short: "List configured toolchains and whether they are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			c, err := check.New(check.Options{Config: cfg, Logger: a.logger})
			if err != nil {
				return failedError{err}
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTAGS\tSTATUS")
			for _, tc := range c.Registry().All() {
				status := "available"
				switch {
				case tc.InProcess():
					status = "in-process (" + tc.Engine + ")"
				default:
					if ok, why := c.Executor().Available(tc, tc.Binaries()); !ok {
						status = why
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", tc.Name, strings.Join(tc.Tags, ","), status)
			}
			if err := tw.Flush(); err != nil {
				return failedError{err}
			}
			return nil
		},
	}
	addSandboxFlags(cmd.Flags())
	return cmd
}
