package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lower-elements/example-web-game/internal/config"
	"github.com/lower-elements/example-web-game/internal/data"
	"github.com/lower-elements/example-web-game/internal/gameserver"
	"github.com/lower-elements/example-web-game/internal/handler"
	"github.com/lower-elements/example-web-game/internal/httpapi"
	"github.com/lower-elements/example-web-game/internal/logging"
	"github.com/lower-elements/example-web-game/internal/persist"
	"github.com/lower-elements/example-web-game/internal/protocol"
)

func main() {
	configPath := flag.String("config", "config/server.toml", "path to the server configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()
	log.Info("server starting", zap.String("bind", cfg.Server.BindAddress))

	if err := persist.Migrate(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	db, err := persist.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	users := persist.NewUserRepo(db)
	log.Info("database connected")

	defs, err := data.LoadMapDir(cfg.Server.MapsDir)
	if err != nil {
		return fmt.Errorf("loading maps: %w", err)
	}
	def, ok := defs[cfg.Server.DefaultMap]
	if !ok {
		return fmt.Errorf("default map %q not found in %s", cfg.Server.DefaultMap, cfg.Server.MapsDir)
	}
	world := def.Build()
	spawn := protocol.Vec3{X: def.SpawnX, Y: def.SpawnY, Z: def.SpawnZ}
	log.Info("world loaded",
		zap.String("map", def.Name), zap.Int("maps_available", len(defs)))

	registry := protocol.NewRegistry()
	srv := gameserver.New(cfg, log, users, world, spawn, registry)
	handler.RegisterAll(registry, &handler.Deps{
		Log:      log,
		World:    world,
		Sessions: srv.Store(),
	})

	mux := http.NewServeMux()
	httpapi.New(log, users, cfg.Server.StaticDir).Mount(mux)
	mux.HandleFunc("/ws", srv.HandleWS)

	httpServer := &http.Server{
		Addr:    cfg.Server.BindAddress,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.BindAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.RunKeepalive(gctx)
	})
	g.Go(func() error {
		return srv.RunTicker(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	world.Destroy()
	log.Info("server stopped")
	return nil
}
