package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Dosada05/volley-tournament/repositories"
)

// Transactor выполняет fn внутри одной транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTransactor struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLTransactor(db *sql.DB, logger *slog.Logger) Transactor {
	return &sqlTransactor{db: db, logger: logger}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) (txErr error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				t.logger.ErrorContext(ctx, "rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// EventPublisher доставляет доменные события подписчикам (websocket, архив).
type EventPublisher interface {
	Publish(ctx context.Context, topic string, tournamentID int, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, int, any) error { return nil }

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// publish logs instead of failing: the state change is already committed.
func publish(ctx context.Context, p EventPublisher, logger *slog.Logger, topic string, tournamentID int, payload any) {
	if err := p.Publish(ctx, topic, tournamentID, payload); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			slog.String("topic", topic), slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
}
