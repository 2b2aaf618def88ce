package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
)

var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrPlayerUserConflict = errors.New("user already has a player profile")
	ErrPlayerUserInvalid  = errors.New("player user reference is invalid")
	ErrPlayerInUse        = errors.New("player is registered for a tournament")
)

type ListPlayersFilter struct {
	Search string
	Limit  int
	Offset int
}

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	GetByUserID(ctx context.Context, userID int) (*models.Player, error)
	ListByIDs(ctx context.Context, ids []int) ([]models.Player, error)
	List(ctx context.Context, filter ListPlayersFilter) ([]models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `id, first_name, last_name, gender, level, user_id, created_at`

func scanPlayer(s rowScanner, p *models.Player) error {
	return s.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Gender, &p.Level, &p.UserID, &p.CreatedAt)
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		INSERT INTO players (first_name, last_name, gender, level, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := executor(r.db, exec).QueryRowContext(ctx, query,
		p.FirstName, p.LastName, p.Gender, p.Level, p.UserID,
	).Scan(&p.ID, &p.CreatedAt)
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	return r.findOne(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
}

func (r *postgresPlayerRepository) GetByUserID(ctx context.Context, userID int) (*models.Player, error) {
	return r.findOne(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = $1`, userID)
}

func (r *postgresPlayerRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Player, error) {
	p := &models.Player{}
	if err := scanPlayer(r.db.QueryRowContext(ctx, query, arg), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) ListByIDs(ctx context.Context, ids []int) ([]models.Player, error) {
	if len(ids) == 0 {
		return []models.Player{}, nil
	}
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = ANY($1) ORDER BY id`
	return r.list(ctx, query, intArray(ids))
}

func (r *postgresPlayerRepository) List(ctx context.Context, filter ListPlayersFilter) ([]models.Player, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + playerColumns + ` FROM players WHERE 1=1`)
	args := []interface{}{}
	argID := 1
	if filter.Search != "" {
		fmt.Fprintf(&b, " AND (first_name ILIKE $%d OR last_name ILIKE $%d)", argID, argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}
	b.WriteString(" ORDER BY last_name, first_name, id")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}
	return r.list(ctx, b.String(), args...)
}

func (r *postgresPlayerRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if err := scanPlayer(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (r *postgresPlayerRepository) Update(ctx context.Context, p *models.Player) error {
	query := `
		UPDATE players SET first_name = $1, last_name = $2, gender = $3, level = $4, user_id = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, p.FirstName, p.LastName, p.Gender, p.Level, p.UserID, p.ID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return r.handlePlayerError(err)
	}
	if err := checkAffectedRows(result, ErrPlayerNotFound); err != nil {
		return err
	}
	// Игрок больше не может числиться в составах.
	if _, err := r.db.ExecContext(ctx, `UPDATE teams SET player_ids = array_remove(player_ids, $1) WHERE $1 = ANY(player_ids)`, id); err != nil {
		return fmt.Errorf("failed to detach player %d from teams: %w", id, err)
	}
	return nil
}

func (r *postgresPlayerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "players_user_id_key" {
				return ErrPlayerUserConflict
			}
		case pqForeignKeyViolation:
			if pqErr.Constraint == "players_user_id_fkey" {
				return ErrPlayerUserInvalid
			}
			return ErrPlayerInUse
		}
	}
	return err
}
