package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationConflict          = errors.New("registration conflict: team or player already registered for this tournament")
	ErrRegistrationTeamInvalid       = errors.New("registration team reference is invalid")
	ErrRegistrationPlayerInvalid     = errors.New("registration player reference is invalid")
	ErrRegistrationTournamentInvalid = errors.New("registration tournament reference is invalid")
	ErrRegistrationTypeViolation     = errors.New("registration must reference exactly one of team or player")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, includeNested bool) ([]*models.Registration, error)
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	UpdateSeed(ctx context.Context, id int, seed *int) error
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context, tournamentID int, status models.RegistrationStatus) (int, error)
	CountAllByStatus(ctx context.Context, status models.RegistrationStatus) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (tournament_id, team_id, player_id, status, seed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query,
		reg.TournamentID,
		reg.TeamID,
		reg.PlayerID,
		reg.Status,
		reg.Seed,
	).Scan(&reg.ID, &reg.CreatedAt)

	if err != nil {
		if pqErr, ok := asPQError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrRegistrationConflict
			case pqForeignKeyViolation:
				switch pqErr.Constraint {
				case "registrations_team_id_fkey":
					return ErrRegistrationTeamInvalid
				case "registrations_player_id_fkey":
					return ErrRegistrationPlayerInvalid
				case "registrations_tournament_id_fkey":
					return ErrRegistrationTournamentInvalid
				}
			case pqCheckViolation:
				if pqErr.Constraint == "registrations_entry_check" {
					return ErrRegistrationTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `
		SELECT id, tournament_id, team_id, player_id, status, seed, created_at
		FROM registrations
		WHERE id = $1`
	reg := &models.Registration{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.TournamentID, &reg.TeamID, &reg.PlayerID, &reg.Status, &reg.Seed, &reg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return reg, nil
}

// ListByTournament возвращает заявки в порядке посева: сначала с seed, затем по id.
// includeNested подгружает команду или игрока одним запросом.
func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, includeNested bool) ([]*models.Registration, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			r.id, r.tournament_id, r.team_id, r.player_id, r.status, r.seed, r.created_at,
			t.name, t.captain_user_id, t.player_ids, t.logo_key,
			p.first_name, p.last_name, p.gender, p.level, p.user_id
		FROM registrations r
		LEFT JOIN teams t ON r.team_id = t.id
		LEFT JOIN players p ON r.player_id = p.id
		WHERE r.tournament_id = $1`)
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		b.WriteString(" AND r.status = $2")
		args = append(args, *statusFilter)
	}
	b.WriteString(" ORDER BY r.seed ASC NULLS LAST, r.id ASC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		reg := &models.Registration{}
		var (
			teamName            sql.NullString
			teamCaptain         sql.NullInt64
			teamPlayers         pq.Int64Array
			teamLogo            sql.NullString
			firstName, lastName sql.NullString
			gender, level       sql.NullString
			playerUserID        sql.NullInt64
		)
		if err := rows.Scan(
			&reg.ID, &reg.TournamentID, &reg.TeamID, &reg.PlayerID, &reg.Status, &reg.Seed, &reg.CreatedAt,
			&teamName, &teamCaptain, &teamPlayers, &teamLogo,
			&firstName, &lastName, &gender, &level, &playerUserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}

		if includeNested {
			if reg.TeamID != nil && teamName.Valid {
				team := &models.Team{ID: *reg.TeamID, Name: teamName.String, PlayerIDs: intsFromArray(teamPlayers)}
				if teamCaptain.Valid {
					id := int(teamCaptain.Int64)
					team.CaptainID = &id
				}
				if teamLogo.Valid {
					key := teamLogo.String
					team.LogoKey = &key
				}
				reg.Team = team
			}
			if reg.PlayerID != nil && firstName.Valid {
				player := &models.Player{ID: *reg.PlayerID, FirstName: firstName.String, LastName: lastName.String}
				if gender.Valid {
					g := gender.String
					player.Gender = &g
				}
				if level.Valid {
					l := level.String
					player.Level = &l
				}
				if playerUserID.Valid {
					id := int(playerUserID.Int64)
					player.UserID = &id
				}
				reg.Player = player
			}
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE registrations SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateSeed(ctx context.Context, id int, seed *int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE registrations SET seed = $1 WHERE id = $2`, seed, id)
	if err != nil {
		return fmt.Errorf("failed to update registration seed: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) CountByStatus(ctx context.Context, tournamentID int, status models.RegistrationStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status = $2`, tournamentID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}

func (r *postgresRegistrationRepository) CountAllByStatus(ctx context.Context, status models.RegistrationStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE status = $1`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}
