package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedContentType = errors.New("unsupported image content type")

// Папки в бакете.
const (
	OwnerTeams       = "teams"
	OwnerTournaments = "tournaments"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит логотипы команд и турниров.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	// GetPublicURL returns "" for an empty key.
	GetPublicURL(key string) string
}

// LogoKey builds a fresh object key like "teams/12/logo_<uuid>.png", so a new
// logo never collides with a cached old one.
func LogoKey(owner string, ownerID int, contentType string) (string, error) {
	ext, err := ExtensionForContentType(contentType)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d/logo_%s%s", owner, ownerID, uuid.NewString(), ext), nil
}

func ExtensionForContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	}
	kind, sub, ok := strings.Cut(contentType, "/")
	if ok && kind == "image" && sub != "" {
		// image/svg+xml -> .svg
		sub, _, _ = strings.Cut(sub, "+")
		return "." + sub, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
}
