package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/volley-tournament/docs"
	"github.com/Dosada05/volley-tournament/handlers"
	"github.com/Dosada05/volley-tournament/metrics"
	"github.com/Dosada05/volley-tournament/middleware"
	"github.com/Dosada05/volley-tournament/models"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Admin        *handlers.AdminHandler
	Tournament   *handlers.TournamentHandler
	Registration *handlers.RegistrationHandler
	Team         *handlers.TeamHandler
	Player       *handlers.PlayerHandler
	Stage        *handlers.StageHandler
	Match        *handlers.MatchHandler
	Format       *handlers.FormatHandler
	WebSocket    *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	// Лимит на /auth/*.
	AuthLimiter *middleware.IPRateLimiter
	// nil - без /metrics.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(requestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)
	staffOnly := middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler())
	}
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Route("/auth", func(r chi.Router) {
		if opts.AuthLimiter != nil {
			r.Use(middleware.RateLimit(opts.AuthLimiter))
		}
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", h.User.GetMe)
		r.Get("/{userID}", h.User.GetUserByID)
		r.Put("/{userID}", h.User.UpdateUserByID)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate, adminOnly)
		r.Get("/dashboard", h.Admin.Dashboard)
		r.Patch("/users/{userID}/role", h.Admin.SetUserRole)
		r.Delete("/users/{userID}", h.Admin.DeleteUser)
	})

	router.Get("/formats/presets", h.Format.ListPresets)
	router.Get("/formats/presets/{presetKey}", h.Format.GetPreset)

	router.Route("/players", func(r chi.Router) {
		r.Get("/", h.Player.ListPlayers)
		r.Get("/{playerID}", h.Player.GetPlayer)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Player.CreatePlayer)
			r.Put("/{playerID}", h.Player.UpdatePlayer)
			r.Delete("/{playerID}", h.Player.DeletePlayer)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", h.Team.ListTeams)
		r.Get("/{teamID}", h.Team.GetTeamByID)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Team.CreateTeam)
			r.Put("/{teamID}", h.Team.UpdateTeam)
			r.Delete("/{teamID}", h.Team.DeleteTeam)
			r.Post("/{teamID}/logo", h.Team.UploadLogo)
			r.Post("/{teamID}/players/{playerID}", h.Team.AddPlayer)
			r.Delete("/{teamID}/players/{playerID}", h.Team.RemovePlayer)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListHandler)
		r.With(authenticate, staffOnly).Post("/", h.Tournament.CreateHandler)

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetByIDHandler)
			r.Get("/overview", h.Tournament.OverviewHandler)
			r.Get("/archive", h.Tournament.ArchiveHandler)
			r.Get("/export.xlsx", h.Tournament.ExportHandler)
			r.Get("/registrations", h.Registration.List)
			r.Get("/matches", h.Match.ListTournamentMatches)
			r.Get("/pools", h.Stage.ListPools)
			r.Get("/bracket", h.Stage.GetBracket)
			r.Get("/phases", h.Stage.GetPhases)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/registrations", h.Registration.Register)
			})

			// Управление турниром: права на конкретный турнир проверяет сервис.
			r.Group(func(r chi.Router) {
				r.Use(authenticate, staffOnly)
				r.Put("/", h.Tournament.UpdateDetailsHandler)
				r.Delete("/", h.Tournament.DeleteHandler)
				r.Patch("/status", h.Tournament.UpdateStatusHandler)
				r.Post("/logo", h.Tournament.UploadLogoHandler)
				r.Post("/format", h.Format.ApplyPreset)
				r.Post("/registrations/import", h.Registration.Import)
				r.Post("/pools", h.Stage.CreatePools)
				r.Post("/bracket", h.Stage.GenerateBracket)
				r.Put("/phases", h.Stage.ConfigurePhases)
			})
		})
	})

	router.Route("/registrations/{registrationID}", func(r chi.Router) {
		r.Use(authenticate)
		r.Patch("/", h.Registration.Update)
		r.Delete("/", h.Registration.Withdraw)
	})

	router.Route("/pools/{poolID}", func(r chi.Router) {
		r.Get("/standings", h.Stage.PoolStandings)
		r.Get("/chart.png", h.Stage.PoolChart)
	})

	router.Route("/phases/{phaseID}", func(r chi.Router) {
		r.Get("/standings", h.Stage.PhaseStandings)
		r.Group(func(r chi.Router) {
			r.Use(authenticate, staffOnly)
			r.Post("/start", h.Stage.StartPhase)
			r.Post("/complete", h.Stage.CompletePhase)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", h.Match.GetMatch)
		r.Group(func(r chi.Router) {
			r.Use(authenticate, staffOnly)
			r.Put("/result", h.Match.RecordResult)
			r.Delete("/result", h.Match.ResetResult)
			r.Patch("/schedule", h.Match.UpdateSchedule)
		})
	})
}

// requestLogger пишет одну строку slog на запрос.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}
