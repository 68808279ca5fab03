package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reedfamily/serverkit/internal/config"
	"github.com/reedfamily/serverkit/internal/db"
	"github.com/reedfamily/serverkit/internal/logging"
	"github.com/reedfamily/serverkit/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API in front of the configured game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("backend", "minecraft", "Game backend")
	flags.String("container", "", "Container running the game server")
	flags.Uint16("game-port", 0, "Published game port (looked up from the container if 0)")
	flags.String("server-name", "", "Server name")
	flags.Int("max-players", 0, "Player limit, clamped to what the backend supports")
	flags.String("ban-store", config.BanStoreSQLite, "Ban storage: sqlite, toml or memory")
	flags.Int("command-rate", 10, "Console commands allowed per second")
	bindFlags(v, cmd, map[string]string{
		"listen":       "listen",
		"backend":      "backend",
		"container":    "container",
		"game_port":    "game-port",
		"server_name":  "server-name",
		"max_players":  "max-players",
		"ban_store":    "ban-store",
		"command_rate": "command-rate",
	})
	return cmd
}

// setup loads the configuration, builds the logger and opens the migrated database.
func setup(v *viper.Viper) (*config.Config, *zap.Logger, *sql.DB, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.WithLogLevel(cfg.LogLevel), logging.WithLogFormat(cfg.LogFormat))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logging: %w", err)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, log, database, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, log, database, err := setup(v)
	if err != nil {
		return err
	}
	defer database.Close()
	defer log.Sync() //nolint:errcheck

	srv, err := server.New(cfg, database, log)
	if err != nil {
		log.Error("failed to create server", zap.Error(err))
		return err
	}
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serverkit listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("backend", cfg.Backend),
			zap.String("container", cfg.Container))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
