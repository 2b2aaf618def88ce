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
	ErrPoolNotFound          = errors.New("pool not found")
	ErrPoolTournamentInvalid = errors.New("pool tournament or phase reference is invalid")
)

type PoolRepository interface {
	Create(ctx context.Context, exec SQLExecutor, pool *models.Pool) error
	GetByID(ctx context.Context, id int) (*models.Pool, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Pool, error)
	ListByPhase(ctx context.Context, exec SQLExecutor, phaseID int) ([]models.Pool, error)
	// DeleteStageByTournament удаляет пулы без фазы (классический турнир) вместе с их матчами.
	DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	DeleteByPhase(ctx context.Context, exec SQLExecutor, phaseID int) error
}

type postgresPoolRepository struct {
	db *sql.DB
}

func NewPostgresPoolRepository(db *sql.DB) PoolRepository {
	return &postgresPoolRepository{db: db}
}

const poolColumns = `id, tournament_id, phase_id, name, position, entry_ids, created_at`

func scanPool(s rowScanner, p *models.Pool) error {
	var entries pq.Int64Array
	if err := s.Scan(&p.ID, &p.TournamentID, &p.PhaseID, &p.Name, &p.Position, &entries, &p.CreatedAt); err != nil {
		return err
	}
	p.EntryIDs = intsFromArray(entries)
	return nil
}

func (r *postgresPoolRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Pool) error {
	query := `
		INSERT INTO pools (tournament_id, phase_id, name, position, entry_ids)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := executor(r.db, exec).QueryRowContext(ctx, query,
		p.TournamentID, p.PhaseID, p.Name, p.Position, intArray(p.EntryIDs),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pqErr, ok := asPQError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrPoolTournamentInvalid
		}
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

func (r *postgresPoolRepository) GetByID(ctx context.Context, id int) (*models.Pool, error) {
	p := &models.Pool{}
	if err := scanPool(r.db.QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to scan pool %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPoolRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE tournament_id = $1 ORDER BY phase_id NULLS FIRST, position`
	return r.list(ctx, r.db, query, tournamentID)
}

func (r *postgresPoolRepository) ListByPhase(ctx context.Context, exec SQLExecutor, phaseID int) ([]models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE phase_id = $1 ORDER BY position`
	return r.list(ctx, executor(r.db, exec), query, phaseID)
}

func (r *postgresPoolRepository) list(ctx context.Context, exec SQLExecutor, query string, arg int) ([]models.Pool, error) {
	rows, err := exec.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	pools := make([]models.Pool, 0)
	for rows.Next() {
		var p models.Pool
		if err := scanPool(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (r *postgresPoolRepository) DeleteStageByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	if _, err := executor(r.db, exec).ExecContext(ctx,
		`DELETE FROM pools WHERE tournament_id = $1 AND phase_id IS NULL`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete pools of tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresPoolRepository) DeleteByPhase(ctx context.Context, exec SQLExecutor, phaseID int) error {
	if _, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM pools WHERE phase_id = $1`, phaseID); err != nil {
		return fmt.Errorf("failed to delete pools of phase %d: %w", phaseID, err)
	}
	return nil
}
