package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonasrichard/mediamosaic/internal/server"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
	"github.com/jonasrichard/mediamosaic/internal/watcher"
	ws "github.com/jonasrichard/mediamosaic/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve galleries and sync directories on request",
	Long: `Start the HTTP server.

Endpoints:
  GET  /sync/{path}     queue a rebuild of a directory
  GET  /serve/{path}    gallery, directory listing or raw file
  GET  /delete/{path}   delete one file
  POST /delete          delete a JSON array of files
  GET  /status/{path}   sync history of a directory
  GET  /ws              live sync events
  GET  /health          queue depth and connected clients`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "port to listen on")
	serveCmd.Flags().String("host", "", "host to bind")
	serveCmd.Flags().String("gallery-shell", "", "HTML page served for synced directories")
	serveCmd.Flags().Bool("watch", false, "re-sync galleries when their images change")

	v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	v.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	v.BindPFlag("server.gallery_shell", serveCmd.Flags().Lookup("gallery-shell"))
	v.BindPFlag("watch.enabled", serveCmd.Flags().Lookup("watch"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(a.logger)
	queue := syncer.NewQueue(cfg.Sync.QueueCapacity)
	coord := syncer.NewCoordinator(a.sandbox, queue, a.recorder(), hub, a.logger)
	worker := syncer.NewWorker(queue, a.pipeline, a.recorder(), hub, a.logger)

	var history server.History
	if a.db != nil {
		history = a.db
	}
	srv := server.New(server.Options{
		Addr:           cfg.Addr(),
		GalleryShell:   cfg.Server.GalleryShell,
		ImageExtension: a.scanner.Extension(),
	}, a.sandbox, coord, history, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})

	if cfg.Watch.Enabled {
		w, err := watcher.New(a.sandbox, coord, a.scanner.Extension(), cfg.Watch.Debounce, a.logger)
		if err != nil {
			stop()
			g.Wait()
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if err := srv.Start(); err != nil {
		stop()
		g.Wait()
		return err
	}

	<-gctx.Done()
	a.logger.Info("shutting down")

	if err := shutdown(srv, queue, shutdownTimeout); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}

	return g.Wait()
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

// shutdown closes the queue before draining HTTP requests, so handlers
// blocked on a full queue fail with QueueClosed instead of holding the
// server open until the timeout.
func shutdown(srv httpServer, queue *syncer.Queue, timeout time.Duration) error {
	queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
