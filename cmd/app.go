package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/volley-tournament/archive"
	"github.com/Dosada05/volley-tournament/config"
	"github.com/Dosada05/volley-tournament/db"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/services"
	"github.com/Dosada05/volley-tournament/storage"
)

// app - собранный граф зависимостей; его делят serve, sync-statuses и export.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	bus    *events.Bus

	auth          services.AuthService
	users         services.UserService
	admin         services.AdminService
	dashboard     services.DashboardService
	players       services.PlayerService
	teams         services.TeamService
	tournaments   services.TournamentService
	registrations services.RegistrationService
	pools         services.PoolService
	bracket       services.BracketService
	king          services.KingService
	matches       services.MatchService
	formats       services.FormatService
	export        services.ExportService

	// nil, если FIRESTORE_PROJECT_ID не задан.
	archiver *archive.Archiver

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, err
	}
	a.db = dbConn
	a.closers = append(a.closers, dbConn.Close)
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewR2Uploader(ctx, cfg.R2, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		logger.Info("R2 uploader initialized", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Info("R2 is not configured, logo uploads are disabled")
	}

	presets, err := config.LoadPresets(cfg.FormatPresetsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bus = events.NewBus(logger)
	a.closers = append(a.closers, a.bus.Close)

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	poolRepo := repositories.NewPostgresPoolRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	tx := services.NewSQLTransactor(dbConn, logger)

	stageDeps := services.StageServiceDeps{
		TournamentRepo:   tournamentRepo,
		RegistrationRepo: registrationRepo,
		PoolRepo:         poolRepo,
		MatchRepo:        matchRepo,
		PhaseRepo:        phaseRepo,
		Tx:               tx,
		Events:           a.bus,
		Logger:           logger,
		Now:              time.Now,
	}

	a.auth = services.NewAuthService(userRepo, playerRepo, logger)
	a.users = services.NewUserService(userRepo, playerRepo)
	a.admin = services.NewAdminService(userRepo, logger)
	a.dashboard = services.NewDashboardService(userRepo, playerRepo, teamRepo, tournamentRepo, matchRepo, registrationRepo)
	a.players = services.NewPlayerService(playerRepo)
	a.teams = services.NewTeamService(teamRepo, playerRepo, uploader, logger)
	a.tournaments = services.NewTournamentService(services.TournamentServiceDeps{
		TournamentRepo:   tournamentRepo,
		RegistrationRepo: registrationRepo,
		PoolRepo:         poolRepo,
		MatchRepo:        matchRepo,
		PhaseRepo:        phaseRepo,
		UserRepo:         userRepo,
		Uploader:         uploader,
		Tx:               tx,
		Events:           a.bus,
		Logger:           logger,
		Now:              time.Now,
	})
	a.registrations = services.NewRegistrationService(services.RegistrationServiceDeps{
		TournamentRepo:   tournamentRepo,
		RegistrationRepo: registrationRepo,
		TeamRepo:         teamRepo,
		PlayerRepo:       playerRepo,
		UserRepo:         userRepo,
		Uploader:         uploader,
		Notifier:         services.NewNotifier(cfg.SMTP, logger),
		Tx:               tx,
		Events:           a.bus,
		Logger:           logger,
		Now:              time.Now,
	})
	a.pools = services.NewPoolService(stageDeps)
	a.bracket = services.NewBracketService(stageDeps)
	a.king = services.NewKingService(stageDeps)
	a.matches = services.NewMatchService(stageDeps)
	a.formats = services.NewFormatService(presets, tournamentRepo, a.king, a.bus, logger)
	a.export = services.NewExportService(a.tournaments, a.pools)

	if cfg.FirestoreProjectID != "" {
		store, closeStore, err := archive.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabase, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize tournament archive: %w", err)
		}
		a.closers = append(a.closers, closeStore)
		a.archiver = archive.NewArchiver(a.tournaments, a.pools, store, logger)
		logger.Info("tournament archive enabled", slog.String("project", cfg.FirestoreProjectID))
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}
	a.closers = nil
}

// syncStatuses runs one pass of the date-driven status scheduler.
func (a *app) syncStatuses(ctx context.Context) (int, error) {
	changed, err := a.tournaments.AutoUpdateTournamentStatusesByDates(ctx)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		a.logger.Info("tournament statuses updated", slog.Int("changed", changed))
	}
	return changed, nil
}
