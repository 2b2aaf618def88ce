package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTeamNameRequired    = errors.New("team name is required")
	ErrPlayerNameRequired  = errors.New("player first name is required")
	ErrTeamSizeMismatch    = errors.New("team roster size does not match the tournament team size")
	ErrWrongEntryType      = errors.New("this tournament kind registers a different entry type")
	ErrPlayerInOtherEntry  = errors.New("player is already registered for this tournament in another entry")
	ErrRegistrationNotOpen = errors.New("tournament registration is not open")
	ErrTournamentFull      = errors.New("tournament registration is full")
	ErrInvalidImportFile   = errors.New("player list file is invalid")
	ErrInvalidSeed         = errors.New("seed must be positive")

	// Ошибки конфликтов
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrTeamNameConflict       = errors.New("team name is already in use")
	ErrRegistrationConflict   = errors.New("team or player is already registered for this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrPlayerProfileConflict  = errors.New("user already has a player profile")
	ErrResourceInUse          = errors.New("resource is still referenced and cannot be deleted")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound         = errors.New("user not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrPhaseNotFound        = errors.New("phase not found")
	ErrMatchNotFound        = errors.New("match not found")

	// Ошибки турниров
	ErrTournamentDatesRequired           = errors.New("tournament registration, start and end dates are required")
	ErrTournamentInvalidRegDate          = errors.New("tournament registration date must not be after start date")
	ErrTournamentInvalidDateRange        = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidCapacity         = errors.New("tournament max entries must not be negative")
	ErrTournamentInvalidKind             = errors.New("invalid tournament kind")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentFinished                = errors.New("tournament is already completed or canceled")
	ErrWrongTournamentKind               = errors.New("operation is not available for this tournament kind")

	// Пулы, сетка, фазы, матчи
	ErrNotEnoughEntries    = errors.New("not enough confirmed entries")
	ErrStageAlreadyPlayed  = errors.New("stage already has played matches and cannot be regenerated")
	ErrPoolStageLocked     = errors.New("pool results are locked once the bracket is generated")
	ErrPoolStageIncomplete = errors.New("pool stage is not completed yet")
	ErrPhasePlanLocked     = errors.New("phase plan cannot change after a phase has started")
	ErrPhaseNotStartable   = errors.New("phase cannot be started")
	ErrPhaseNotCompletable = errors.New("phase cannot be completed while matches are unfinished")
	ErrPhaseClosed         = errors.New("phase is completed, its matches are locked")
	ErrMatchNotReady       = errors.New("match sides are not determined yet")
	ErrDownstreamPlayed    = errors.New("a later bracket match has already been played")
	ErrInvalidMatchResult  = errors.New("invalid match result")
	ErrUnknownPreset       = errors.New("unknown format preset")

	ErrUploadsDisabled = errors.New("file uploads are not configured")
)
