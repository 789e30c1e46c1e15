package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ticketsearch/internal/api"
	"github.com/dshills/ticketsearch/internal/config"
	"github.com/dshills/ticketsearch/internal/loader"
	"github.com/dshills/ticketsearch/internal/mcp"
)

func runServe(ctx context.Context, args []string, _, stderr io.Writer) error {
	var (
		common   commonFlags
		addr     string
		seedDemo bool
	)
	fs := newFlagSet("serve", stderr)
	common.register(fs)
	fs.StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	fs.BoolVar(&seedDemo, "seed-demo", false, "ingest the built-in demo tickets at startup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, cleanup, err := common.build(ctx, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := a.Config
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	var responder api.Responder
	if a.Chat != nil {
		responder = a.Chat
	}
	srv := api.NewServer(a.Engine, responder, api.Options{
		DefaultK:    cfg.Server.DefaultK,
		ProjectName: cfg.ProjectName,
		Logger:      a.Logger,
	})

	if seedDemo || cfg.Server.SeedDemo {
		stats, err := srv.Seed(ctx, loader.DemoTickets())
		if err != nil {
			return err
		}
		a.Logger.Info("seeded demo tickets", "ingested", stats.Ingested)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", cfg.Server.Addr, "project", cfg.ProjectName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeout))
		defer cancel()
		a.Logger.Info("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP(ctx context.Context, args []string, _, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("mcp", stderr)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, cleanup, err := common.build(ctx, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	mcp.ServerVersion = version
	server, err := mcp.NewServer(a.Engine, a.Logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("received shutdown signal")
		return nil
	case err := <-errChan:
		return err
	}
}
