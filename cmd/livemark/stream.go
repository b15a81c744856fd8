package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livefir/livemark"
	"github.com/livefir/livemark/internal/tokens"
)

func newStreamCmd(a *app) *cobra.Command {
	var (
		format string
		fake   int
		seed   uint64
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "stream [file]",
		Short: "Replay a document as a token stream through the pipeline",
		Long: `Replay a Markdown file, or a generated document with --fake, as if a
generator emitted it token by token. Every applied update is reported on
stderr; the final rendering is written to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := sourceText(cmd, args, fake, seed)
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

			ctx := cmd.Context()
			texts := tokens.Replay(ctx, text, a.cfg.Stream.ChunkSize, a.cfg.Stream.Interval)

			var last *livemark.View[string]
			for update := range doc.Run(ctx, texts) {
				if update.Err != nil {
					a.logger.Warn("update failed", "generation", update.Generation, "error", update.Err)
					continue
				}
				last = update.View
				if !quiet {
					printStats(cmd.ErrOrStderr(), last)
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if last == nil {
				return nil
			}

			s := doc.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "updates %d  reuse %.1f%%  cache hit %.1f%%  superseded %d\n",
				s.Pipeline.UpdatesApplied, s.ReuseRate*100, s.Cache.HitRate*100, s.Pipeline.ParsesSuperseded)
			fmt.Fprintln(cmd.OutOrStdout(), joinView(last, sep))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "ansi", "Output format: ansi or html")
	cmd.Flags().IntVar(&fake, "fake", 0, "Generate a document with this many paragraphs instead of reading a file")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for --fake")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not report individual updates")
	return cmd
}

// sourceText returns the file contents, or a generated document when fake > 0
func sourceText(cmd *cobra.Command, args []string, fake int, seed uint64) (string, error) {
	if fake > 0 {
		return tokens.FakeDocument(fake, seed), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("a file or --fake is required")
	}
	return readInput(cmd, args[0])
}
