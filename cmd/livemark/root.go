package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livefir/livemark"
	"github.com/livefir/livemark/internal/config"
	"github.com/livefir/livemark/internal/parser"
	"github.com/livefir/livemark/internal/render"
)

// app carries what every command needs once flags are parsed
type app struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "livemark",
		Short:         "Incremental Markdown rendering for streamed documents",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Path to config file (default ~/"+config.DefaultConfigDir+"/"+config.ConfigFileName+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newRenderCmd(a),
		newStreamCmd(a),
		newServeCmd(a),
		newTUICmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(logOut)
	slog.SetDefault(a.logger)
	return nil
}

// documentOptions maps the configuration onto pipeline options
func (a *app) documentOptions() []livemark.Option {
	return []livemark.Option{
		livemark.WithRenderConfig(a.cfg.Render),
		livemark.WithCacheCapacity(a.cfg.Cache.Capacity),
		livemark.WithThrottle(a.cfg.Parser.Throttle),
		livemark.WithParser(parser.New(parser.WithGFM(a.cfg.Parser.GFM))),
		livemark.WithMaxWorkers(a.cfg.Parser.Workers),
		livemark.WithLogger(a.logger),
	}
}

// newRenderer picks the renderer for an output format
func newRenderer(format string) (livemark.Renderer[string], string, error) {
	switch strings.ToLower(format) {
	case "ansi", "":
		return render.NewANSI(), "\n\n", nil
	case "html":
		return render.NewHTML(), "", nil
	default:
		return nil, "", fmt.Errorf("unknown format %q (want ansi or html)", format)
	}
}

// readInput reads a file, or standard input for "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func joinView(view *livemark.View[string], sep string) string {
	return strings.Join(view.Artifacts(), sep)
}
