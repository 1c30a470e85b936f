package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a named object does not exist in the session.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidName is returned for names that cannot be stored safely.
	ErrInvalidName = errors.New("invalid object name")
	// ErrPresignUnsupported is returned when the store cannot issue direct upload URLs.
	ErrPresignUnsupported = errors.New("presigned uploads not supported")
)

// StoredObject describes one file in a session's working directory.
type StoredObject struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ImageStore is the flat, name-keyed working directory of a session.
// List returns objects sorted by name.
type ImageStore interface {
	Save(ctx context.Context, session, name string, r io.Reader) (StoredObject, error)
	Open(ctx context.Context, session, name string) (io.ReadCloser, error)
	List(ctx context.Context, session string) ([]StoredObject, error)
	Clear(ctx context.Context, session string) (int, error)
}

// PresignedUpload is a short-lived URL a client can PUT a file to directly.
type PresignedUpload struct {
	Name             string `json:"name"`
	UploadURL        string `json:"uploadUrl"`
	Method           string `json:"method"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// Presigner is implemented by stores that can hand out direct upload URLs.
// The object lands in the same session namespace Save would use.
type Presigner interface {
	PresignPut(ctx context.Context, session, name string, expires time.Duration) (PresignedUpload, error)
}

// ReadAll opens the named object and returns its full contents.
func ReadAll(ctx context.Context, store ImageStore, session, name string) ([]byte, error) {
	rc, err := store.Open(ctx, session, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
