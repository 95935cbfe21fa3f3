package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/resource-store/pkg/resource/gcsmeta"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobs      BlobStore
	objects    ObjectStore
	events     EventSink
	bucketName string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the resource repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store client
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithObjectStore sets the object storage client
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objects = store
	}
}

// WithEventSink sets the event sink; defaults to a no-op sink
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

// WithBucketName sets the base bucket used when computing per-origin bucket
// paths for uploads
func WithBucketName(name string) Option {
	return func(s *service) {
		s.bucketName = name
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		events:     NewNoopEventSink(),
		bucketName: "uploads",
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}

	return s, nil
}

// CompleteUpload walks a finished upload through metadata extraction, blob
// resolution, best-effort URL derivation and persistence. URL derivation
// failures degrade to a record without a URL; every other failure aborts with
// no record persisted.
func (s *service) CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*Resource, error) {
	meta, err := gcsmeta.Extract(req.Raw)
	if err != nil {
		return nil, err
	}

	if req.BlobKey == "" {
		return nil, fmt.Errorf("%w: missing blob key", ErrBlobNotFound)
	}
	info, err := s.blobs.GetBlobInfo(ctx, req.BlobKey)
	if err != nil {
		return nil, err
	}

	var imageURL, publicURL string
	if strings.HasPrefix(info.ContentType, "image") {
		url, err := s.blobs.GetImageServingURL(ctx, info.Key)
		if err != nil {
			slog.Warn("Image serving URL derivation failed", "blob_key", info.Key, "err", err)
		} else {
			imageURL = url
		}
	} else {
		if err := s.objects.SetACL(ctx, meta.Bucket, meta.ObjectPath()); err != nil {
			slog.Warn("Object ACL patch failed", "object_path", meta.Path(), "err", err)
		} else {
			publicURL = s.objects.PublicURLFor(meta.Bucket, meta.ObjectPath(), info.ContentType)
		}
	}

	now := time.Now().UTC()
	res := &Resource{
		Key:           uuid.New(),
		UserKey:       req.UserKey,
		BlobKey:       info.Key,
		Name:          info.Filename,
		ContentType:   info.ContentType,
		Size:          info.Size,
		ImageURL:      imageURL,
		PublicURL:     publicURL,
		BucketName:    s.bucketPath(req.Origin),
		GCSObjectPath: meta.Path(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.repository.Put(ctx, res); err != nil {
		// The blob already exists; reclaim it so a failed completion does
		// not strand an orphan. Blob deletion is idempotent, so a retried
		// completion stays safe either way.
		if derr := s.blobs.DeleteBlob(ctx, info.Key); derr != nil && !errors.Is(derr, ErrBlobNotFound) {
			slog.Error("Failed to reclaim blob after persist failure", "blob_key", info.Key, "err", derr)
		}
		return nil, &ResourceError{Key: res.Key, Op: "put", Err: err}
	}

	if err := s.events.ResourceCreated(ctx, res); err != nil {
		slog.Warn("Resource created event failed", "key", res.Key, "err", err)
	}

	return res, nil
}

func (s *service) UploadURLs(ctx context.Context, count int, successPath, origin string) ([]string, error) {
	if count < 1 {
		count = 1
	}

	bucketPath := s.bucketPath(origin)
	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		url, err := s.blobs.CreateUploadURL(ctx, successPath, bucketPath)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *service) GetResource(ctx context.Context, key uuid.UUID) (*Resource, error) {
	return s.repository.Get(ctx, key)
}

func (s *service) GetResources(ctx context.Context, keys []uuid.UUID) ([]*Resource, error) {
	return s.repository.GetMulti(ctx, keys)
}

func (s *service) ListResources(ctx context.Context, limit int, cursor string) ([]*Resource, string, error) {
	return s.repository.List(ctx, limit, cursor)
}

func (s *service) DeleteResource(ctx context.Context, key uuid.UUID) (*Resource, error) {
	res, err := s.repository.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.deleteBlob(ctx, res.BlobKey); err != nil {
		return nil, err
	}
	if err := s.repository.DeleteMulti(ctx, []uuid.UUID{key}); err != nil {
		return nil, err
	}

	if err := s.events.ResourceDeleted(ctx, key); err != nil {
		slog.Warn("Resource deleted event failed", "key", key, "err", err)
	}

	return res, nil
}

// DeleteResources deletes blobs one by one before removing all resolved
// records in a single metadata transaction. A blob deletion failure aborts
// before the transaction, so the matching records survive and the whole call
// can be retried; already-deleted blobs then read as ErrBlobNotFound, which
// is an acceptable end state. Duplicate keys collapse to one deletion.
func (s *service) DeleteResources(ctx context.Context, keys []uuid.UUID) error {
	resources, err := s.repository.GetMulti(ctx, keys)
	if err != nil {
		return err
	}

	// Collapse duplicates: repositories check the batch row count against
	// the key set, so a repeated key must reach them only once.
	seen := make(map[uuid.UUID]bool, len(resources))
	var resolved []uuid.UUID
	for _, res := range resources {
		if res == nil || seen[res.Key] {
			continue
		}
		seen[res.Key] = true
		if err := s.deleteBlob(ctx, res.BlobKey); err != nil {
			return err
		}
		resolved = append(resolved, res.Key)
	}
	if len(resolved) == 0 {
		return nil
	}

	if err := s.repository.DeleteMulti(ctx, resolved); err != nil {
		return err
	}

	for _, key := range resolved {
		if err := s.events.ResourceDeleted(ctx, key); err != nil {
			slog.Warn("Resource deleted event failed", "key", key, "err", err)
		}
	}
	return nil
}

// deleteBlob removes a blob, treating an already-absent blob as success.
func (s *service) deleteBlob(ctx context.Context, blobKey string) error {
	if err := s.blobs.DeleteBlob(ctx, blobKey); err != nil && !errors.Is(err, ErrBlobNotFound) {
		return err
	}
	return nil
}

// bucketPath computes the "<bucket>/<origin>" path recorded on uploads. The
// origin's scheme is stripped; absent origins fall back to "no-origin".
func (s *service) bucketPath(origin string) string {
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	if origin == "" {
		origin = "no-origin"
	}
	return fmt.Sprintf("%s/%s", s.bucketName, origin)
}
