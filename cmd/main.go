package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/config"
	"github.com/Dosada05/volley-tournament/db"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/handlers"
	"github.com/Dosada05/volley-tournament/metrics"
	"github.com/Dosada05/volley-tournament/middleware"
	"github.com/Dosada05/volley-tournament/routes"
)

// @title Volley Tournament API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	cliApp := &cli.App{
		Name:  "volley",
		Usage: "beach volleyball tournament manager",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API, websocket hub and status scheduler",
				Action: func(c *cli.Context) error {
					return serve(c.Context, logger)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the embedded database schema",
				Action: func(c *cli.Context) error {
					return migrate(c.Context, logger)
				},
			},
			{
				Name:  "sync-statuses",
				Usage: "run one pass of the date-driven tournament status update",
				Action: func(c *cli.Context) error {
					return withApp(c.Context, logger, func(a *app) error {
						changed, err := a.syncStatuses(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "tournaments updated: %d\n", changed)
						return nil
					})
				},
			},
			{
				Name:  "export",
				Usage: "write a tournament to an XLSX file",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "tournament", Aliases: []string{"t"}, Required: true, Usage: "tournament id"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default tournament-<id>.xlsx)"},
				},
				Action: func(c *cli.Context) error {
					id := c.Int("tournament")
					out := c.String("out")
					if out == "" {
						out = fmt.Sprintf("tournament-%d.xlsx", id)
					}
					return withApp(c.Context, logger, func(a *app) error {
						return exportTournament(c.Context, a, id, out)
					})
				},
			},
		},
		// Без подкоманды поднимаем сервер.
		Action: func(c *cli.Context) error {
			return serve(c.Context, logger)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func withApp(ctx context.Context, logger *slog.Logger, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func migrate(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	logger.Info("database schema applied")
	return nil
}

func exportTournament(ctx context.Context, a *app, tournamentID int, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := a.export.ExportTournament(ctx, tournamentID, f); err != nil {
		return err
	}
	a.logger.Info("tournament exported", slog.Int("tournament_id", tournamentID), slog.String("file", path))
	return nil
}

func serve(parent context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := brackets.NewHub(logger)
	m := metrics.New(hub.TotalClients)

	var archiver events.TournamentArchiver
	var archiveReader handlers.ArchiveReader
	if a.archiver != nil {
		archiver = a.archiver
		archiveReader = a.archiver
	}
	eventRouter, err := events.NewRouter(a.bus, hub, archiver, logger)
	if err != nil {
		return fmt.Errorf("failed to create event router: %w", err)
	}
	eventRouter.AddMiddleware(m.CountEvents)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:         handlers.NewAuthHandler(a.auth, cfg.JWTSecretKey, cfg.JWTTTL),
		User:         handlers.NewUserHandler(a.users),
		Admin:        handlers.NewAdminHandler(a.admin, a.dashboard),
		Tournament:   handlers.NewTournamentHandler(a.tournaments, a.export, archiveReader),
		Registration: handlers.NewRegistrationHandler(a.registrations),
		Team:         handlers.NewTeamHandler(a.teams),
		Player:       handlers.NewPlayerHandler(a.players),
		Stage:        handlers.NewStageHandler(a.pools, a.bracket, a.king, a.export),
		Match:        handlers.NewMatchHandler(a.matches),
		Format:       handlers.NewFormatHandler(a.formats),
		WebSocket:    handlers.NewWebSocketHandler(hub, a.tournaments, cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		JWTSecret:          cfg.JWTSecretKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthLimiter:        middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:            m,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	hubStop := make(chan struct{})
	g.Go(func() error {
		hub.Run(hubStop)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		close(hubStop)
		return nil
	})

	g.Go(func() error {
		if err := eventRouter.Run(gctx); err != nil {
			return fmt.Errorf("event router: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runStatusScheduler(gctx, a, m, cfg.StatusSyncInterval)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		return nil
	})

	err = g.Wait()
	logger.Info("application exited")
	return err
}

// runStatusScheduler двигает статусы турниров по датам: сразу при старте и дальше по тикеру.
func runStatusScheduler(ctx context.Context, a *app, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	a.logger.Info("tournament status scheduler started", slog.Duration("interval", interval))

	for {
		changed, err := a.syncStatuses(ctx)
		m.StatusSync(changed, err)
		if err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler: status update failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
