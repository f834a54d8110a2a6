// Package filestore keeps uploaded quiz documents and answer files on local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidPath is returned for stored paths that escape the store root.
var ErrInvalidPath = errors.New("invalid stored path")

// Local writes files below a root directory and returns paths relative to it.
type Local struct {
	root   string
	logger zerolog.Logger
}

// NewLocal prepares the root directory.
func NewLocal(root string, logger zerolog.Logger) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local upload directory must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Local{
		root:   root,
		logger: logger.With().Str("component", "local_filestore").Logger(),
	}, nil
}

// Put stores the content under a unique name derived from name.
func (l *Local) Put(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(name))
	target := filepath.Join(l.root, stored)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write stored file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close stored file: %w", err)
	}

	l.logger.Debug().Str("path", stored).Msg("file stored")
	return stored, nil
}

// Open returns a reader for a stored file.
func (l *Local) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := l.resolve(storedPath)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// Delete removes a stored file. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, storedPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := l.resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) resolve(storedPath string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(storedPath))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.root, cleaned), nil
}
