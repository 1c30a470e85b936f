package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/util"
)

var (
	// ErrUnsupportedType is returned for files outside the accepted extensions.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned when a declared upload size exceeds the limit.
	ErrTooLarge = errors.New("file exceeds the upload limit")
)

const presignExpires = 15 * time.Minute

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".pdf":  {},
	".docx": {},
}

// Upload describes a stored file as returned by the API.
type Upload struct {
	object.StoredObject
	Displayable bool   `json:"displayable"`
	PageCount   int    `json:"pageCount,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// Service stores uploaded files in a session's working directory.
type Service struct {
	Store object.ImageStore
}

// CheckName validates a file name and its extension without storing anything.
func CheckName(name string) (string, error) {
	clean, err := util.SanitizeFileName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}
	if _, ok := allowedExtensions[util.Ext(clean)]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, clean)
	}
	return clean, nil
}

// Save stores one file, replacing any earlier file of the same name.
func (s *Service) Save(ctx context.Context, session, name string, r io.Reader) (Upload, error) {
	clean, err := CheckName(name)
	if err != nil {
		return Upload{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Upload{}, fmt.Errorf("read upload %s: %w", clean, err)
	}

	stored, err := s.Store.Save(ctx, session, clean, bytes.NewReader(data))
	if err != nil {
		return Upload{}, err
	}

	in := Inspect(clean, data)
	return Upload{
		StoredObject: stored,
		Displayable:  in.Displayable,
		PageCount:    in.PageCount,
		Width:        in.Width,
		Height:       in.Height,
		Warning:      in.Warning,
	}, nil
}

// Presign issues a direct upload URL when the store supports it. sizeBytes is
// the size the client declares and must fit within maxBytes.
func (s *Service) Presign(ctx context.Context, session, name string, sizeBytes, maxBytes int64) (object.PresignedUpload, error) {
	clean, err := CheckName(name)
	if err != nil {
		return object.PresignedUpload{}, err
	}
	if sizeBytes <= 0 || sizeBytes > maxBytes {
		return object.PresignedUpload{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, sizeBytes)
	}
	presigner, ok := s.Store.(object.Presigner)
	if !ok {
		return object.PresignedUpload{}, object.ErrPresignUnsupported
	}
	return presigner.PresignPut(ctx, session, clean, presignExpires)
}

// List returns the session's stored files sorted by name.
func (s *Service) List(ctx context.Context, session string) ([]Upload, error) {
	objects, err := s.Store.List(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	out := make([]Upload, 0, len(objects))
	for _, obj := range objects {
		out = append(out, Upload{StoredObject: obj, Displayable: util.IsImageName(obj.Name)})
	}
	return out, nil
}

// Open returns a stored file and the content type to serve it with.
func (s *Service) Open(ctx context.Context, session, name string) (io.ReadCloser, string, error) {
	clean, err := util.SanitizeFileName(name)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}
	rc, err := s.Store.Open(ctx, session, clean)
	if err != nil {
		return nil, "", err
	}
	return rc, contentType(clean), nil
}

func contentType(name string) string {
	switch ext := util.Ext(name); ext {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
