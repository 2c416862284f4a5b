package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/snipcheck/internal/check"
	"github.com/pdiddy/snipcheck/internal/report"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List the code blocks of Markdown documents and how each is handled",
		Long: `List extracts and classifies the fenced code blocks of the given documents
without running anything. Each line shows the block, its opening line, its
language, the chosen strategy and the reason for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, cfg, err := a.resolve(args)
			if err != nil {
				return err
			}
			c, err := check.New(check.Options{Config: cfg, Logger: a.logger})
			if err != nil {
				return failedError{err}
			}

			entries, docErrs := c.Plan(paths)
			r := report.Build("", time.Now(), paths, entries, docErrs)

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				for _, rec := range r.Records() {
					if err := enc.Encode(rec); err != nil {
						return failedError{err}
					}
				}
			} else {
				for _, rec := range r.Records() {
					target := rec.Toolchain
					if target == "" {
						target = rec.Reason
					}
					lang := rec.Lang
					if lang == "" {
						lang = "-"
					}
					fmt.Fprintf(a.stdout, "%s\t%d\t%s\t%s\t%s\n", rec.ID, rec.Line, lang, rec.Strategy, target)
				}
			}

			for _, rec := range r.ErrorRecords() {
				fmt.Fprintln(a.stderr, "error:", rec.Error)
			}
			if len(docErrs) > 0 {
				return failedError{}
			}
			return nil
		},
	}

	addClassifyFlags(cmd.Flags())
	cmd.Flags().Bool("json", false, "print one JSON record per block")
	return cmd
}
