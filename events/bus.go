package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Топики доменных событий.
const (
	TopicMatchUpdated        = "match.updated"
	TopicPoolsGenerated      = "pools.generated"
	TopicBracketGenerated    = "bracket.generated"
	TopicPhaseUpdated        = "phase.updated"
	TopicTournamentUpdated   = "tournament.updated"
	TopicTournamentCompleted = "tournament.completed"
)

// AllTopics - все топики, которые пересылаются в websocket.
var AllTopics = []string{
	TopicMatchUpdated,
	TopicPoolsGenerated,
	TopicBracketGenerated,
	TopicPhaseUpdated,
	TopicTournamentUpdated,
	TopicTournamentCompleted,
}

const metadataTournamentID = "tournament_id"

// Envelope is the JSON body of every event message.
type Envelope struct {
	Topic        string          `json:"topic"`
	TournamentID int             `json:"tournament_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// Bus - внутрипроцессная шина на watermill gochannel.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewSlogLogger(logger),
	)
	return &Bus{pubSub: pubSub, logger: logger}
}

// Publish serializes payload into an Envelope and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, tournamentID int, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	body, err := json.Marshal(Envelope{
		Topic:        topic,
		TournamentID: tournamentID,
		Payload:      raw,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(metadataTournamentID, strconv.Itoa(tournamentID))

	b.logger.DebugContext(ctx, "publishing event",
		slog.String("topic", topic),
		slog.Int("tournament_id", tournamentID),
		slog.String("message_uuid", msg.UUID),
	)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) Subscriber() message.Subscriber {
	return b.pubSub
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Decode reads the envelope of a message published by Bus.
func Decode(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode event %s: %w", msg.UUID, err)
	}
	return env, nil
}
