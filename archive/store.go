package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

const collectionTournaments = "tournament_archive"

var ErrSnapshotNotFound = errors.New("archived tournament not found")

// Store сохраняет и читает снимки турниров.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, tournamentID int) (*Snapshot, error)
}

type firestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreStore connects to Firestore. With FIRESTORE_EMULATOR_HOST set the
// client talks to the emulator without credentials.
func NewFirestoreStore(ctx context.Context, projectID, databaseID string, logger *slog.Logger) (Store, func() error, error) {
	var opts []option.ClientOption
	if os.Getenv("FIRESTORE_EMULATOR_HOST") != "" {
		opts = append(opts, option.WithoutAuthentication())
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info("firestore archive connected", slog.String("project", projectID), slog.String("database", databaseID))
	return &firestoreStore{client: client, logger: logger}, client.Close, nil
}

func docID(tournamentID int) string {
	return strconv.Itoa(tournamentID)
}

func (s *firestoreStore) Save(ctx context.Context, snap Snapshot) error {
	_, err := s.client.Collection(collectionTournaments).Doc(docID(snap.TournamentID)).Set(ctx, snap)
	if err != nil {
		return fmt.Errorf("failed to save snapshot of tournament %d: %w", snap.TournamentID, err)
	}
	return nil
}

func (s *firestoreStore) Get(ctx context.Context, tournamentID int) (*Snapshot, error) {
	doc, err := s.client.Collection(collectionTournaments).Doc(docID(tournamentID)).Get(ctx)
	if doc != nil && !doc.Exists() {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot of tournament %d: %w", tournamentID, err)
	}
	var snap Snapshot
	if err := doc.DataTo(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of tournament %d: %w", tournamentID, err)
	}
	return &snap, nil
}
