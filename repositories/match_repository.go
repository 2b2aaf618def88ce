package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament, pool or phase reference is invalid")
	ErrMatchUIDConflict       = errors.New("bracket uid already used in this tournament")
	ErrMatchInvalidValue      = errors.New("match status or winner side violates a constraint")
)

type ListMatchesFilter struct {
	TournamentID *int
	Stage        *models.MatchStage
	PoolID       *int
	PhaseID      *int
	Status       *models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	List(ctx context.Context, exec SQLExecutor, filter ListMatchesFilter) ([]*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, sets models.Sets, status models.MatchStatus, winnerSide *int) error
	UpdateLinks(ctx context.Context, exec SQLExecutor, id int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error
	// SetSlot записывает участников в сторону 1 (A) или 2 (B) матча.
	SetSlot(ctx context.Context, exec SQLExecutor, id int, slot int, entries []int) error
	UpdateSchedule(ctx context.Context, id int, court *string, scheduledAt *time.Time) error
	DeleteByStage(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.MatchStage) error
	Count(ctx context.Context, status *models.MatchStatus) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, tournament_id, stage, pool_id, phase_id, round, order_in_round, bracket_uid,
	side_a, side_b, sets, status, winner_side, next_match_id, winner_to_slot,
	loser_next_match_id, loser_to_slot, court, scheduled_at, created_at`

func scanMatch(s rowScanner, m *models.Match) error {
	var sideA, sideB pq.Int64Array
	err := s.Scan(
		&m.ID, &m.TournamentID, &m.Stage, &m.PoolID, &m.PhaseID, &m.Round, &m.OrderInRound, &m.BracketUID,
		&sideA, &sideB, &m.Sets, &m.Status, &m.WinnerSide, &m.NextMatchID, &m.WinnerToSlot,
		&m.LoserNextMatchID, &m.LoserToSlot, &m.Court, &m.ScheduledAt, &m.CreatedAt,
	)
	if err != nil {
		return err
	}
	m.SideA = intsFromArray(sideA)
	m.SideB = intsFromArray(sideB)
	return nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, stage, pool_id, phase_id, round, order_in_round, bracket_uid,
			 side_a, side_b, sets, status, winner_side, next_match_id, winner_to_slot,
			 loser_next_match_id, loser_to_slot, court, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at`

	if m.Status == "" {
		m.Status = models.MatchStatusScheduled
	}
	err := executor(r.db, exec).QueryRowContext(ctx, query,
		m.TournamentID,
		m.Stage,
		m.PoolID,
		m.PhaseID,
		m.Round,
		m.OrderInRound,
		m.BracketUID,
		intArray(m.SideA),
		intArray(m.SideB),
		m.Sets,
		m.Status,
		m.WinnerSide,
		m.NextMatchID,
		m.WinnerToSlot,
		m.LoserNextMatchID,
		m.LoserToSlot,
		m.Court,
		m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, r.db, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getOne(ctx, executor(r.db, exec), `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Match, error) {
	m := &models.Match{}
	if err := scanMatch(exec.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) List(ctx context.Context, exec SQLExecutor, filter ListMatchesFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE 1=1`)

	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		queryBuilder.WriteString(" AND " + cond + " = $" + strconv.Itoa(len(args)))
	}
	if filter.TournamentID != nil {
		add("tournament_id", *filter.TournamentID)
	}
	if filter.Stage != nil {
		add("stage", *filter.Stage)
	}
	if filter.PoolID != nil {
		add("pool_id", *filter.PoolID)
	}
	if filter.PhaseID != nil {
		add("phase_id", *filter.PhaseID)
	}
	if filter.Status != nil {
		add("status", *filter.Status)
	}
	queryBuilder.WriteString(" ORDER BY round ASC, order_in_round ASC, id ASC")

	rows, err := executor(r.db, exec).QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if err := scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, sets models.Sets, status models.MatchStatus, winnerSide *int) error {
	query := `UPDATE matches SET sets = $1, status = $2, winner_side = $3 WHERE id = $4`
	result, err := executor(r.db, exec).ExecContext(ctx, query, sets, status, winnerSide, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateLinks(ctx context.Context, exec SQLExecutor, id int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error {
	query := `
		UPDATE matches
		SET next_match_id = $1, winner_to_slot = $2, loser_next_match_id = $3, loser_to_slot = $4
		WHERE id = $5`
	result, err := executor(r.db, exec).ExecContext(ctx, query, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot, id)
	if err != nil {
		return fmt.Errorf("UpdateLinks: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetSlot(ctx context.Context, exec SQLExecutor, id int, slot int, entries []int) error {
	column := "side_a"
	if slot == models.SideB {
		column = "side_b"
	}
	result, err := executor(r.db, exec).ExecContext(ctx,
		`UPDATE matches SET `+column+` = $1 WHERE id = $2`, intArray(entries), id)
	if err != nil {
		return fmt.Errorf("SetSlot: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, id int, court *string, scheduledAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET court = $1, scheduled_at = $2 WHERE id = $3`, court, scheduledAt, id)
	if err != nil {
		return fmt.Errorf("failed to update schedule of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByStage(ctx context.Context, exec SQLExecutor, tournamentID int, stage models.MatchStage) error {
	if _, err := executor(r.db, exec).ExecContext(ctx,
		`DELETE FROM matches WHERE tournament_id = $1 AND stage = $2`, tournamentID, stage); err != nil {
		return fmt.Errorf("failed to delete %s matches of tournament %d: %w", stage, tournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) Count(ctx context.Context, status *models.MatchStatus) (int, error) {
	var n int
	var err error
	if status != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE status = $1`, *status).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return ErrMatchTournamentInvalid
		case pqUniqueViolation:
			if pqErr.Constraint == "matches_tournament_id_bracket_uid_key" {
				return ErrMatchUIDConflict
			}
		case pqCheckViolation:
			return ErrMatchInvalidValue
		}
	}
	return err
}
