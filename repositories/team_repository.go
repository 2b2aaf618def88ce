package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name conflict")
	ErrTeamInUse        = errors.New("team is registered for a tournament")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByIDs(ctx context.Context, ids []int) ([]models.Team, error)
	List(ctx context.Context, limit, offset int) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdatePlayers(ctx context.Context, teamID int, playerIDs []int) error
	UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, name, captain_user_id, player_ids, logo_key, created_at`

func scanTeam(s rowScanner, t *models.Team) error {
	var players pq.Int64Array
	if err := s.Scan(&t.ID, &t.Name, &t.CaptainID, &players, &t.LogoKey, &t.CreatedAt); err != nil {
		return err
	}
	t.PlayerIDs = intsFromArray(players)
	return nil
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (name, captain_user_id, player_ids, logo_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, t.Name, t.CaptainID, intArray(t.PlayerIDs), t.LogoKey).Scan(&t.ID, &t.CreatedAt)
	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	t := &models.Team{}
	err := scanTeam(r.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByIDs(ctx context.Context, ids []int) ([]models.Team, error) {
	if len(ids) == 0 {
		return []models.Team{}, nil
	}
	return r.list(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ANY($1) ORDER BY id`, intArray(ids))
}

func (r *postgresTeamRepository) List(ctx context.Context, limit, offset int) ([]models.Team, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *postgresTeamRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET name = $1, captain_user_id = $2 WHERE id = $3`, t.Name, t.CaptainID, t.ID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdatePlayers(ctx context.Context, teamID int, playerIDs []int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET player_ids = $1 WHERE id = $2`, intArray(playerIDs), teamID)
	if err != nil {
		return fmt.Errorf("failed to update players of team %d: %w", teamID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, logoKey, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return n, nil
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "teams_name_key" {
				return ErrTeamNameConflict
			}
		case pqForeignKeyViolation:
			if pqErr.Constraint == "teams_captain_user_id_fkey" {
				return ErrUserNotFound
			}
			return ErrTeamInUse
		}
	}
	return err
}
