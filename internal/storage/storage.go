// Package storage persists uploaded images. Without an upload directory every
// upload resolves to a placeholder image URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/config"
)

const (
	// MaxUploadSize is the largest accepted upload in bytes
	MaxUploadSize = 5 << 20

	PlaceholderURL = "/static/placeholder.svg"
)

// allowedTypes are the raster formats accepted for upload. No SVG: uploads
// are served from the site's origin.
var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Store saves a file and returns its public URL
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// New returns a disk store when an upload directory is configured, otherwise
// a placeholder store.
func New(cfg config.StorageConfig, logger zerolog.Logger) (Store, error) {
	log := logger.With().Str("component", "storage").Logger()
	if cfg.UploadDir == "" {
		log.Info().Msg("UPLOAD_DIR not set - uploads resolve to placeholder")
		return PlaceholderStore{}, nil
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{dir: cfg.UploadDir, baseURL: cfg.UploadBaseURL}, nil
}

// DiskStore writes uploads to a local directory served under baseURL
type DiskStore struct {
	dir     string
	baseURL string
}

// Dir returns the directory uploads are written to
func (d *DiskStore) Dir() string {
	return d.dir
}

func (d *DiskStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, name)

	// Write to a temporary file first so the served path never sees a partial upload
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move upload into place: %w", err)
	}
	return d.baseURL + "/" + name, nil
}

// PlaceholderStore discards uploads
type PlaceholderStore struct{}

func (PlaceholderStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	return PlaceholderURL, nil
}

func allowedType(mtype *mimetype.MIME) bool {
	for _, t := range allowedTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

// Upload reads an image from r, checks size and content type, and saves it
// under a generated name.
func Upload(ctx context.Context, store Store, r io.Reader) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", apperrors.Unexpected("failed to read upload", err)
	}
	if n == 0 {
		return "", apperrors.Validation("File is empty")
	}
	if n > MaxUploadSize {
		return "", apperrors.Validation("File exceeds %d MB", MaxUploadSize>>20)
	}

	data := buf.Bytes()
	mtype := mimetype.Detect(data)
	if !allowedType(mtype) {
		return "", apperrors.Validation("Unsupported file type %s", mtype.String())
	}

	name := strings.ToLower(ulid.Make().String()) + mtype.Extension()
	url, err := store.Save(ctx, name, data)
	if err != nil {
		return "", apperrors.Unexpected("failed to store upload", err)
	}
	return url, nil
}
