package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/util"
)

// deleteBatchSize is the DeleteObjects per-request key limit.
const deleteBatchSize = 1000

// api is the subset of the S3 client the store uses.
type api interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store implements ImageStore using Amazon S3. Each session is a key prefix.
type Store struct {
	client  api
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// New creates a new S3-backed image store.
func New(ctx context.Context, region, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newWithS3Client(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newWithS3Client(client *s3.Client, bucket, prefix string) *Store {
	st := newWithClient(client, bucket, prefix)
	st.presign = s3.NewPresignClient(client)
	return st
}

func newWithClient(client api, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
}

// Save uploads the reader contents under the session prefix, replacing any object of the same name.
func (s *Store) Save(ctx context.Context, session, name string, r io.Reader) (object.StoredObject, error) {
	sanitizedName, err := util.SanitizeFileName(name)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return object.StoredObject{}, err
	}

	mimeType, body, err := object.SniffReader(r)
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("read sniff: %w", err)
	}
	counter := &countingReader{r: body}

	objectKey := s.objectKey(session, sanitizedName)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 counter,
		ContentType:          aws.String(mimeType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return object.StoredObject{}, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}

	return object.StoredObject{
		Name:      sanitizedName,
		SizeBytes: counter.n,
		MimeType:  mimeType,
	}, nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, session, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectKey := s.objectKey(session, name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, name)
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

// List returns the objects stored directly under the session prefix, sorted by name.
func (s *Store) List(ctx context.Context, session string) ([]object.StoredObject, error) {
	sessionPrefix := s.sessionPrefix(session)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(sessionPrefix),
	})

	out := []object.StoredObject{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects bucket=%s prefix=%s: %w", s.bucket, sessionPrefix, err)
		}
		for _, item := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(item.Key), sessionPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			obj := object.StoredObject{
				Name:      name,
				SizeBytes: aws.ToInt64(item.Size),
			}
			if item.LastModified != nil {
				obj.ModifiedAt = item.LastModified.UTC()
			}
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Clear deletes every object under the session prefix.
func (s *Store) Clear(ctx context.Context, session string) (int, error) {
	objs, err := s.List(ctx, session)
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(objs); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(objs) {
			end = len(objs)
		}
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, obj := range objs[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(s.objectKey(session, obj.Name))})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return removed, fmt.Errorf("s3 delete objects bucket=%s: %w", s.bucket, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return removed + len(ids) - len(out.Errors), fmt.Errorf("s3 delete objects bucket=%s key=%s: %s",
				s.bucket, aws.ToString(first.Key), aws.ToString(first.Message))
		}
		removed += len(ids)
	}
	return removed, nil
}

// PresignPut returns a presigned PUT URL for name under the session prefix.
func (s *Store) PresignPut(ctx context.Context, session, name string, expires time.Duration) (object.PresignedUpload, error) {
	if s.presign == nil {
		return object.PresignedUpload{}, object.ErrPresignUnsupported
	}
	sanitizedName, err := util.SanitizeFileName(name)
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("%w: %q", object.ErrInvalidName, name)
	}

	objectKey := s.objectKey(session, sanitizedName)
	out, err := s.presign.PresignPutObject(ctx, presignInput(s.bucket, objectKey), func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("s3 presign put bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.PresignedUpload{
		Name:             sanitizedName,
		UploadURL:        out.URL,
		Method:           out.Method,
		ExpiresInSeconds: int64(expires.Seconds()),
	}, nil
}

func presignInput(bucket, key string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
}

// isNotFound matches the typed NoSuchKey error and the generic API error codes
// S3-compatible servers return for missing keys.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *Store) sessionPrefix(session string) string {
	return applyPrefix(s.prefix, util.HashSessionKey(session)) + "/"
}

func (s *Store) objectKey(session, name string) string {
	return applyPrefix(s.prefix, path.Join(util.HashSessionKey(session), name))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var (
	_ object.ImageStore = (*Store)(nil)
	_ object.Presigner  = (*Store)(nil)
)
