package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/util"
)

// Store implements ImageStore as one flat directory per session on the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local image store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes the reader to the session directory, replacing any file of the same name.
func (s *Store) Save(ctx context.Context, session, name string, r io.Reader) (object.StoredObject, error) {
	sanitizedName, err := util.SanitizeFileName(name)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return object.StoredObject{}, err
	}

	dirPath := s.sessionDir(session)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return object.StoredObject{}, fmt.Errorf("mkdir: %w", err)
	}

	mimeType, body, err := object.SniffReader(r)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("read sniff: %w", err)
	}

	fullPath := filepath.Join(dirPath, sanitizedName)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, body)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("write body: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("stat: %w", err)
	}

	return object.StoredObject{
		Name:       sanitizedName,
		SizeBytes:  written,
		MimeType:   mimeType,
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

// Open opens a stored file for reading.
func (s *Store) Open(ctx context.Context, session, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sanitizedName, err := util.SanitizeFileName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}

	f, err := os.Open(filepath.Join(s.sessionDir(session), sanitizedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// List returns the regular files of the session directory sorted by name.
func (s *Store) List(ctx context.Context, session string) ([]object.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.sessionDir(session))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []object.StoredObject{}, nil
		}
		return nil, fmt.Errorf("list: %w", err)
	}

	out := make([]object.StoredObject, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, object.StoredObject{
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clear deletes every file in the session directory and reports how many were removed.
func (s *Store) Clear(ctx context.Context, session string) (int, error) {
	objects, err := s.List(ctx, session)
	if err != nil {
		return 0, err
	}
	dir := s.sessionDir(session)
	removed := 0
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(filepath.Join(dir, obj.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", obj.Name, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) sessionDir(session string) string {
	return filepath.Join(s.baseDir, util.HashSessionKey(session))
}

var _ object.ImageStore = (*Store)(nil)
