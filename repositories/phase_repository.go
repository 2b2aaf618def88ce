package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrPhaseNotFound       = errors.New("phase not found")
	ErrPhaseNumberConflict = errors.New("phase number already exists for this tournament")
)

type PhaseRepository interface {
	// ReplacePlan удаляет текущие фазы турнира и сохраняет новые. Вызывается внутри транзакции.
	ReplacePlan(ctx context.Context, exec SQLExecutor, tournamentID int, phases []models.Phase) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Phase, error)
	GetByID(ctx context.Context, id int) (*models.Phase, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error)
	MarkStarted(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	MarkCompleted(ctx context.Context, exec SQLExecutor, id int, promoted []int, at time.Time) error
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

const phaseColumns = `
	id, tournament_id, number, name, team_size, pool_count, qualifiers_per_pool,
	repechage_slots, rounds_per_pool, status, promoted, started_at, completed_at, created_at`

func scanPhase(s rowScanner, p *models.Phase) error {
	var promoted pq.Int64Array
	err := s.Scan(
		&p.ID, &p.TournamentID, &p.Number, &p.Name, &p.TeamSize, &p.PoolCount, &p.QualifiersPerPool,
		&p.RepechageSlots, &p.RoundsPerPool, &p.Status, &promoted, &p.StartedAt, &p.CompletedAt, &p.CreatedAt,
	)
	if err != nil {
		return err
	}
	p.Promoted = intsFromArray(promoted)
	return nil
}

func (r *postgresPhaseRepository) ReplacePlan(ctx context.Context, exec SQLExecutor, tournamentID int, phases []models.Phase) error {
	ex := executor(r.db, exec)
	if _, err := ex.ExecContext(ctx, `DELETE FROM phases WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to clear phases of tournament %d: %w", tournamentID, err)
	}

	query := `
		INSERT INTO phases (tournament_id, number, name, team_size, pool_count, qualifiers_per_pool,
			repechage_slots, rounds_per_pool, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	for i := range phases {
		p := &phases[i]
		p.TournamentID = tournamentID
		if p.Status == "" {
			p.Status = models.PhaseConfigured
		}
		err := ex.QueryRowContext(ctx, query,
			p.TournamentID, p.Number, p.Name, p.TeamSize, p.PoolCount, p.QualifiersPerPool,
			p.RepechageSlots, p.RoundsPerPool, p.Status,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if pqErr, ok := asPQError(err); ok && pqErr.Code == pqUniqueViolation {
				return ErrPhaseNumberConflict
			}
			return fmt.Errorf("failed to insert phase %d: %w", p.Number, err)
		}
	}
	return nil
}

func (r *postgresPhaseRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Phase, error) {
	rows, err := executor(r.db, exec).QueryContext(ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE tournament_id = $1 ORDER BY number`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	phases := make([]models.Phase, 0)
	for rows.Next() {
		var p models.Phase
		if err := scanPhase(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	return r.getOne(ctx, r.db, `SELECT `+phaseColumns+` FROM phases WHERE id = $1`, id)
}

func (r *postgresPhaseRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error) {
	return r.getOne(ctx, executor(r.db, exec), `SELECT `+phaseColumns+` FROM phases WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresPhaseRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Phase, error) {
	p := &models.Phase{}
	if err := scanPhase(exec.QueryRowContext(ctx, query, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan phase %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPhaseRepository) MarkStarted(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	result, err := executor(r.db, exec).ExecContext(ctx,
		`UPDATE phases SET status = $1, started_at = $2 WHERE id = $3`, models.PhaseInProgress, at, id)
	if err != nil {
		return fmt.Errorf("failed to start phase %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

func (r *postgresPhaseRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int, promoted []int, at time.Time) error {
	result, err := executor(r.db, exec).ExecContext(ctx,
		`UPDATE phases SET status = $1, promoted = $2, completed_at = $3 WHERE id = $4`,
		models.PhaseCompleted, intArray(promoted), at, id)
	if err != nil {
		return fmt.Errorf("failed to complete phase %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}
