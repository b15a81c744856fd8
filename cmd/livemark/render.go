package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/livefir/livemark"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		format string
		stats  bool
	)

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a Markdown file once",
		Long:  "Render a Markdown file (or - for stdin) to the terminal or as HTML.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			renderer, sep, err := newRenderer(format)
			if err != nil {
				return err
			}

			doc, err := livemark.New(renderer, a.documentOptions()...)
			if err != nil {
				return err
			}
			defer doc.Close()

			view, err := doc.Update(cmd.Context(), text)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), joinView(view, sep))
			if stats {
				printStats(cmd.ErrOrStderr(), view)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "ansi", "Output format: ansi or html")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print render statistics to stderr")
	return cmd
}

// printStats writes a one-line summary of an update
func printStats(w io.Writer, view *livemark.View[string]) {
	fmt.Fprintf(w, "rev %-4d %-8s blocks %-4d reused %-4d rendered %-4d hit %5.1f%% %v\n",
		view.Revision, view.Pattern, view.Len(), view.Reused, view.Rendered,
		view.HitRate*100, view.Duration)
}
