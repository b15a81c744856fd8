package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/livefir/livemark"
	"github.com/livefir/livemark/internal/render"
	"github.com/livefir/livemark/internal/tokens"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		watch    bool
		simulate bool
	)

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Serve a live HTML preview of a Markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			doc, err := livemark.New[string](render.NewHTML(), a.documentOptions()...)
			if err != nil {
				return err
			}
			defer doc.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			h := livemark.NewHandler(doc,
				livemark.WithTitle(filepath.Base(path)),
				livemark.WithHandlerLogger(a.logger))
			go h.Start(ctx)

			if simulate {
				go replay(ctx, h, text, a)
			} else {
				h.Replace(text)
			}

			if watch {
				watcher, err := watchFile(ctx, path, h, a.logger)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			return listen(ctx, addr, h, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the preview when the file changes")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Replay the file as a token stream")
	return cmd
}

// listen serves h until ctx ends, then shuts the server down
func listen(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("preview server listening", "url", "http://"+addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("preview server stopped")
	return nil
}

// replay feeds text to h as a token stream
func replay(ctx context.Context, h *livemark.Handler, text string, a *app) {
	for partial := range tokens.Replay(ctx, text, a.cfg.Stream.ChunkSize, a.cfg.Stream.Interval) {
		h.Replace(partial)
	}
	a.logger.Info("simulated stream finished", "bytes", len(text))
}

// watchFile reloads path into h whenever it is written. The parent
// directory is watched so editors that replace the file are followed.
func watchFile(ctx context.Context, path string, h *livemark.Handler, logger *slog.Logger) (*fsnotify.Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				data, err := os.ReadFile(abs)
				if err != nil {
					logger.Warn("failed to reload file", "path", abs, "error", err)
					continue
				}
				logger.Debug("file changed", "path", abs, "op", event.Op.String())
				h.Replace(string(data))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
