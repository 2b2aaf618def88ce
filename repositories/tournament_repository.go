package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/volley-tournament/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict for this organizer")
	ErrTournamentInUse        = errors.New("tournament is in use (registrations/matches exist)")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
	ErrTournamentInvalidValue = errors.New("tournament kind or status violates a constraint")
)

type ListTournamentsFilter struct {
	Kind        *models.TournamentKind
	OrganizerID *int
	Status      *models.TournamentStatus
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	Delete(ctx context.Context, id int) error
	UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error
	UpdateWinner(ctx context.Context, exec SQLExecutor, tournamentID int, winnerRegistrationID *int) error
	ListNonTerminal(ctx context.Context, exec SQLExecutor) ([]*models.Tournament, error)
	Count(ctx context.Context, status *models.TournamentStatus) (int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, description, location, kind, organizer_id,
	reg_date, start_date, end_date, max_entries, team_size, status, settings,
	winner_registration_id, created_at, logo_key`

func scanTournament(s rowScanner, t *models.Tournament) error {
	return s.Scan(
		&t.ID, &t.Name, &t.Description, &t.Location, &t.Kind, &t.OrganizerID,
		&t.RegDate, &t.StartDate, &t.EndDate, &t.MaxEntries, &t.TeamSize, &t.Status, &t.Settings,
		&t.WinnerRegistrationID, &t.CreatedAt, &t.LogoKey,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, description, location, kind, organizer_id,
			reg_date, start_date, end_date, max_entries, team_size, status, settings, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Location, t.Kind, t.OrganizerID,
		t.RegDate, t.StartDate, t.EndDate, t.MaxEntries, t.TeamSize, t.Status, t.Settings, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return r.getOne(ctx, r.db, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

// GetByIDForUpdate блокирует строку турнира до конца транзакции exec.
func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.getOne(ctx, executor(r.db, exec), `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Tournament, error) {
	t := &models.Tournament{}
	if err := scanTournament(exec.QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argID)
		args = append(args, *filter.Kind)
		argID++
	}
	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if err := scanTournament(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// Update перезаписывает редактируемые поля. Статус, победитель и логотип
// меняются своими методами.
func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			location = $3,
			reg_date = $4,
			start_date = $5,
			end_date = $6,
			max_entries = $7,
			team_size = $8,
			settings = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, t.Location,
		t.RegDate, t.StartDate, t.EndDate, t.MaxEntries, t.TeamSize, t.Settings,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	result, err := executor(r.db, exec).ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET logo_key = $1 WHERE id = $2`, logoKey, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateWinner sets or clears the winning registration of the tournament.
func (r *postgresTournamentRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, tournamentID int, winnerRegistrationID *int) error {
	result, err := executor(r.db, exec).ExecContext(ctx,
		`UPDATE tournaments SET winner_registration_id = $1 WHERE id = $2`, winnerRegistrationID, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update winner of tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// ListNonTerminal возвращает турниры, статус которых ещё может измениться по датам.
func (r *postgresTournamentRepository) ListNonTerminal(ctx context.Context, exec SQLExecutor) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE status NOT IN ($1, $2) ORDER BY id`
	rows, err := executor(r.db, exec).QueryContext(ctx, query, models.StatusCompleted, models.StatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for auto status update: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t := &models.Tournament{}
		if err := scanTournament(rows, t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament for auto status update: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration for auto status update: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Count(ctx context.Context, status *models.TournamentStatus) (int, error) {
	var n int
	var err error
	if status != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournaments WHERE status = $1`, *status).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournaments`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count tournaments: %w", err)
	}
	return n, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case pqForeignKeyViolation:
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrg
			}
			// Остальные FK указывают на турнир: удаление невозможно, пока есть зависимые строки.
			return ErrTournamentInUse
		case pqCheckViolation:
			return ErrTournamentInvalidValue
		}
	}
	return err
}
