package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/resource-store/pkg/resource"
)

const defaultPublicURLBase = "https://storage.googleapis.com"

// Store is an in-memory implementation of the resource.BlobStore and
// resource.ObjectStore interfaces, for tests and development. Blobs are
// seeded rather than uploaded; ACL assignments are recorded so callers can
// assert on them. Failure injection covers the two best-effort derivation
// paths.
type Store struct {
	mu            sync.RWMutex
	blobs         map[string]resource.BlobInfo
	acls          map[string]bool // "bucket/objectPath" -> policy applied
	uploadSeq     int
	failServing   bool
	failACL       bool
	publicURLBase string
}

var (
	_ resource.BlobStore   = (*Store)(nil)
	_ resource.ObjectStore = (*Store)(nil)
)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		blobs:         make(map[string]resource.BlobInfo),
		acls:          make(map[string]bool),
		publicURLBase: defaultPublicURLBase,
	}
}

// SeedBlob registers a blob as if it had been uploaded directly
func (s *Store) SeedBlob(info resource.BlobInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[info.Key] = info
}

// FailServingURLs makes GetImageServingURL fail until reset
func (s *Store) FailServingURLs(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failServing = fail
}

// FailACL makes SetACL fail until reset
func (s *Store) FailACL(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failACL = fail
}

// HasBlob reports whether a blob is currently stored
func (s *Store) HasBlob(blobKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.blobs[blobKey]
	return exists
}

// ACLApplied reports whether the fixed policy was assigned to an object
func (s *Store) ACLApplied(bucket, objectPath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acls[fmt.Sprintf("%s/%s", bucket, objectPath)]
}

func (s *Store) CreateUploadURL(ctx context.Context, successPath, bucketPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadSeq++
	return fmt.Sprintf("memory://upload/%s/%d?success=%s", bucketPath, s.uploadSeq, successPath), nil
}

func (s *Store) GetBlobInfo(ctx context.Context, blobKey string) (*resource.BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.blobs[blobKey]
	if !exists {
		return nil, &resource.StorageError{Backend: "memory", Key: blobKey, Op: "get_blob_info", Err: resource.ErrBlobNotFound}
	}
	infoCopy := info
	return &infoCopy, nil
}

func (s *Store) DeleteBlob(ctx context.Context, blobKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[blobKey]; !exists {
		return &resource.StorageError{Backend: "memory", Key: blobKey, Op: "delete_blob", Err: resource.ErrBlobNotFound}
	}
	delete(s.blobs, blobKey)
	return nil
}

func (s *Store) GetImageServingURL(ctx context.Context, blobKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failServing {
		return "", &resource.StorageError{Backend: "memory", Key: blobKey, Op: "get_image_serving_url", Err: resource.ErrServingURLDerivation}
	}
	if _, exists := s.blobs[blobKey]; !exists {
		return "", &resource.StorageError{Backend: "memory", Key: blobKey, Op: "get_image_serving_url", Err: resource.ErrBlobNotFound}
	}
	return fmt.Sprintf("memory://serve/%s", blobKey), nil
}

func (s *Store) SetACL(ctx context.Context, bucket, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failACL {
		return &resource.StorageError{
			Backend: "memory",
			Key:     fmt.Sprintf("%s/%s", bucket, objectPath),
			Op:      "set_acl",
			Err:     resource.ErrACLPatch,
		}
	}
	s.acls[fmt.Sprintf("%s/%s", bucket, objectPath)] = true
	return nil
}

func (s *Store) PublicURLFor(bucket, objectPath, contentType string) string {
	return fmt.Sprintf("%s/%s/%s?content_type=%s", s.publicURLBase, bucket, objectPath, contentType)
}
