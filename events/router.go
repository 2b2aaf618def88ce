package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Broadcaster рассылает сообщение подписчикам websocket-комнаты.
type Broadcaster interface {
	Publish(roomID, msgType string, payload any)
}

// TournamentArchiver stores a finished tournament in the document archive.
type TournamentArchiver interface {
	ArchiveTournament(ctx context.Context, tournamentID int) error
}

// wsMessageType maps an event topic to the websocket message type clients know.
func wsMessageType(topic string) string {
	switch topic {
	case TopicMatchUpdated:
		return brackets.MessageMatchUpdated
	case TopicPoolsGenerated, TopicBracketGenerated:
		return brackets.MessageBracketUpdated
	case TopicPhaseUpdated:
		return brackets.MessagePhaseUpdated
	default:
		return brackets.MessageTournamentUpdated
	}
}

// NewRouter wires the bus to the websocket hub and, when archiver is not nil,
// archives tournaments on completion. Run the returned router with Run(ctx).
func NewRouter(bus *Bus, hub Broadcaster, archiver TournamentArchiver, logger *slog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)

	for _, topic := range AllTopics {
		router.AddNoPublisherHandler(
			"ws-"+topic,
			topic,
			bus.Subscriber(),
			forwardToHub(hub, logger),
		)
	}

	if archiver != nil {
		router.AddNoPublisherHandler(
			"archive-completed",
			TopicTournamentCompleted,
			bus.Subscriber(),
			archiveHandler(archiver, logger),
		)
	}
	return router, nil
}

func forwardToHub(hub Broadcaster, logger *slog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		env, err := Decode(msg)
		if err != nil {
			// битое сообщение повторять бессмысленно
			logger.Warn("dropping undecodable event", slog.String("uuid", msg.UUID), slog.Any("error", err))
			return nil
		}
		hub.Publish(brackets.RoomForTournament(env.TournamentID), wsMessageType(env.Topic), env.Payload)
		return nil
	}
}

func archiveHandler(archiver TournamentArchiver, logger *slog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		env, err := Decode(msg)
		if err != nil {
			logger.Warn("dropping undecodable event", slog.String("uuid", msg.UUID), slog.Any("error", err))
			return nil
		}
		if err := archiver.ArchiveTournament(msg.Context(), env.TournamentID); err != nil {
			logger.Error("failed to archive tournament", slog.Int("tournament_id", env.TournamentID), slog.Any("error", err))
			return nil
		}
		logger.Info("tournament archived", slog.Int("tournament_id", env.TournamentID))
		return nil
	}
}
