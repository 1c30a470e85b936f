package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/util"
)

type entry struct {
	data       []byte
	mimeType   string
	modifiedAt time.Time
}

// Store is an in-memory ImageStore, used by tests and OBJECT_STORE=memory.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]entry // session -> name -> entry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{data: make(map[string]map[string]entry)}
}

// Save buffers the reader under the given name, replacing any previous value.
func (s *Store) Save(ctx context.Context, session, name string, r io.Reader) (object.StoredObject, error) {
	sanitizedName, err := util.SanitizeFileName(name)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return object.StoredObject{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("read body: %w", err)
	}

	e := entry{
		data:       data,
		mimeType:   http.DetectContentType(data),
		modifiedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.data[session]
	if !ok {
		files = make(map[string]entry)
		s.data[session] = files
	}
	files[sanitizedName] = e

	return toObject(sanitizedName, e), nil
}

// Open returns a reader over a copy of the stored bytes.
func (s *Store) Open(ctx context.Context, session, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[session][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), e.data...))), nil
}

// List returns the session's objects sorted by name.
func (s *Store) List(ctx context.Context, session string) ([]object.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := s.data[session]
	out := make([]object.StoredObject, 0, len(files))
	for name, e := range files {
		out = append(out, toObject(name, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clear drops every object of the session.
func (s *Store) Clear(ctx context.Context, session string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data[session])
	delete(s.data, session)
	return n, nil
}

func toObject(name string, e entry) object.StoredObject {
	return object.StoredObject{
		Name:       name,
		SizeBytes:  int64(len(e.data)),
		MimeType:   e.mimeType,
		ModifiedAt: e.modifiedAt,
	}
}

var _ object.ImageStore = (*Store)(nil)
