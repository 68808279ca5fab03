// Package server wires the configured game backend, its collaborators and the HTTP API together.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reedfamily/serverkit/internal/address"
	"github.com/reedfamily/serverkit/internal/api"
	"github.com/reedfamily/serverkit/internal/auth"
	"github.com/reedfamily/serverkit/internal/bans"
	"github.com/reedfamily/serverkit/internal/chat"
	"github.com/reedfamily/serverkit/internal/config"
	"github.com/reedfamily/serverkit/internal/docker"
	"github.com/reedfamily/serverkit/internal/game"
	"github.com/reedfamily/serverkit/internal/game/console"
	"github.com/reedfamily/serverkit/internal/scheduler"
	"github.com/reedfamily/serverkit/internal/stats"
	"go.uber.org/zap"

	// Register console dialects
	_ "github.com/reedfamily/serverkit/internal/game/minecraft"
	_ "github.com/reedfamily/serverkit/internal/game/vintagestory"
)

const (
	statsInterval = 30 * time.Second
	logRetryDelay = 5 * time.Second
)

type Server struct {
	log       *zap.Logger
	router    chi.Router
	game      *console.Server
	docker    *docker.Client
	console   *docker.Console
	hub       *chat.Hub
	collector *stats.Collector
	scheduler *scheduler.Scheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the console backend named by cfg.Backend, makes it the active server and starts the
// background workers.
func New(cfg *config.Config, db *sql.DB, log *zap.Logger) (*Server, error) {
	dialect := console.Lookup(cfg.Backend)
	if dialect == nil {
		return nil, fmt.Errorf("unknown backend %q, known: %v", cfg.Backend, console.Games())
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("container is required for backend %s", cfg.Backend)
	}

	// Initialize auth
	authSvc := auth.NewService(db)
	if err := authSvc.EnsureDefaultOperator(cfg.DefaultUser, cfg.DefaultPass); err != nil {
		return nil, fmt.Errorf("ensure default operator: %w", err)
	}

	registry, err := openBanRegistry(cfg, db)
	if err != nil {
		return nil, err
	}

	resolver := address.New(address.Options{
		URL:     cfg.IPLookupURL,
		Timeout: cfg.IPLookupTimeout,
		Log:     log.Named("address"),
	})
	address.SetDefault(resolver)

	// Initialize Docker client
	dockerClient, err := docker.NewClient()
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	consoleExec := docker.NewConsole(dockerClient, cfg.Container, cfg.CommandRate, log.Named("docker"))

	port := cfg.GamePort
	if port == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		port, err = dockerClient.HostPort(ctx, cfg.Container, dialect.DefaultPort(), "")
		cancel()
		if err != nil {
			log.Warn("couldn't look up published game port", zap.Error(err))
		}
		if port == 0 {
			port = dialect.DefaultPort()
		}
	}

	chatLog := log.Named("chat")
	hub := chat.NewHub(chatLog, func(from *chat.Client, text string) {
		if srv := game.Active(); srv != nil {
			srv.Broadcast(game.ChatLine("["+from.Name()+"]", text))
		}
	})

	gameSrv, err := console.New(console.Options{
		Dialect:    dialect,
		Executor:   consoleExec,
		Registry:   registry,
		Resolver:   resolver,
		Transport:  hub,
		Name:       cfg.ServerName,
		Port:       port,
		Version:    cfg.Version,
		Protocol:   cfg.Protocol,
		Language:   cfg.Language,
		MaxPlayers: cfg.MaxPlayers,
		OnChat: func(player, message string) {
			if err := hub.BroadcastAll(game.ChatLine("<"+player+">", message)); err != nil {
				chatLog.Debug("relay to web chat failed", zap.Error(err))
			}
		},
		Log: log.Named("game"),
	})
	if err == nil {
		err = game.Activate(gameSrv)
	}
	if err != nil {
		hub.Close()
		consoleExec.Close()
		dockerClient.Close()
		return nil, err
	}

	collector := stats.NewCollector(db, nil, log.Named("stats"))
	sched := scheduler.New(db, nil, log.Named("scheduler"))

	var lister game.BanLister
	if l, ok := registry.(game.BanLister); ok {
		lister = l
	}
	s := &Server{
		log:       log,
		game:      gameSrv,
		docker:    dockerClient,
		console:   consoleExec,
		hub:       hub,
		collector: collector,
		scheduler: sched,
	}
	s.router = newRouter(routes{
		log:       log.Named("http"),
		auth:      authSvc,
		servers:   game.Active,
		bans:      lister,
		hub:       hub,
		scheduler: sched,
		stats:     collector,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.followConsole(ctx, cfg.Container)

	collector.Start(statsInterval)
	sched.Start()
	return s, nil
}

func openBanRegistry(cfg *config.Config, db *sql.DB) (game.BanRegistry, error) {
	switch cfg.BanStore {
	case config.BanStoreMemory:
		return bans.NewMemory(), nil
	case config.BanStoreTOML:
		f, err := bans.LoadFile(cfg.BanFile)
		if err != nil {
			return nil, fmt.Errorf("ban file: %w", err)
		}
		return f, nil
	default:
		return bans.NewSQLite(db), nil
	}
}

// followConsole feeds the container's output to the game server, reconnecting when the stream ends.
func (s *Server) followConsole(ctx context.Context, container string) {
	defer s.wg.Done()
	for {
		// ask for the player list once the stream is up
		resync := time.AfterFunc(2*time.Second, s.game.Sync)
		err := s.docker.FollowLogs(ctx, container, "0", s.game.HandleLine)
		resync.Stop()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("console log stream ended", zap.String("container", container), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(logRetryDelay):
		}
	}
}

func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.collector.Stop()
	s.scheduler.Stop()
	s.hub.Close()
	s.console.Close()
	game.Deactivate(s.game)
	if err := s.docker.Close(); err != nil {
		s.log.Warn("close docker client", zap.Error(err))
	}
}

type routes struct {
	log       *zap.Logger
	auth      *auth.Service
	servers   api.Servers
	bans      game.BanLister
	hub       *chat.Hub
	scheduler *scheduler.Scheduler
	stats     *stats.Collector
}

func newRouter(rt routes) chi.Router {
	operatorHandler := api.NewOperatorHandler(rt.auth)
	gameHandler := api.NewGameHandler(rt.servers)
	banHandler := api.NewBanHandler(rt.servers, rt.bans)
	chatHandler := api.NewChatHandler(rt.hub)
	scheduleHandler := api.NewScheduleHandler(rt.scheduler)
	statsHandler := api.NewStatsHandler(rt.stats, rt.log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(rt.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080", "http://192.168.1.*:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", operatorHandler.Login)

		// Protected routes, websockets may authenticate with ?token=
		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(rt.auth))

			r.Post("/auth/logout", operatorHandler.Logout)
			r.Get("/auth/me", operatorHandler.Me)
			r.Post("/operators", operatorHandler.Create)

			r.Route("/server", func(r chi.Router) {
				r.Get("/", gameHandler.Get)
				r.Put("/", gameHandler.Update)
				r.Post("/save", gameHandler.Save)
				r.Post("/stop", gameHandler.Stop)

				r.Get("/stats", statsHandler.Latest)
				r.Get("/stats/history", statsHandler.History)
				r.Get("/stats/live", statsHandler.Live)
			})

			r.Post("/broadcast", gameHandler.Broadcast)
			r.Post("/command", gameHandler.Command)
			r.Get("/chat", chatHandler.Handle)

			r.Route("/bans", func(r chi.Router) {
				r.Get("/", banHandler.List)
				r.Get("/{id}", banHandler.Get)
				r.Put("/{id}", banHandler.Put)
				r.Delete("/{id}", banHandler.Delete)
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", scheduleHandler.List)
				r.Post("/", scheduleHandler.Create)
				r.Put("/{scheduleId}", scheduleHandler.Update)
				r.Delete("/{scheduleId}", scheduleHandler.Delete)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
