package resource_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/resource-store/pkg/resource"
	memoryrepo "github.com/tendant/resource-store/pkg/resource/repo/memory"
	memorystorage "github.com/tendant/resource-store/pkg/resource/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	repo := memoryrepo.New()
	store := memorystorage.New()

	tests := []struct {
		name        string
		options     []resource.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []resource.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []resource.Option{
				resource.WithRepository(repo),
			},
			expectError: true,
		},
		{
			name: "repository and blob store without object store should fail",
			options: []resource.Option{
				resource.WithRepository(repo),
				resource.WithBlobStore(store),
			},
			expectError: true,
		},
		{
			name: "full wiring should succeed",
			options: []resource.Option{
				resource.WithRepository(repo),
				resource.WithBlobStore(store),
				resource.WithObjectStore(store),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := resource.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T) (resource.Service, *memoryrepo.Repository, *memorystorage.Store) {
	t.Helper()

	repo := memoryrepo.New()
	store := memorystorage.New()

	svc, err := resource.New(
		resource.WithRepository(repo),
		resource.WithBlobStore(store),
		resource.WithObjectStore(store),
		resource.WithBucketName("app-bucket"),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc, repo, store
}

func headerBlock(objectURL string) []byte {
	return []byte(fmt.Sprintf("X-AppEngine-Cloud-Storage-Object: %s\r\n\r\npayload", objectURL))
}

func TestCompleteUploadNonImage(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	store.SeedBlob(resource.BlobInfo{
		Key:         "blob-pdf",
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        2048,
	})

	userKey := uuid.New()
	res, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
		UserKey: userKey,
		BlobKey: "blob-pdf",
		Raw:     headerBlock("/gs/app-bucket/example.com/report.pdf"),
		Origin:  "https://example.com",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.Key)
	assert.Equal(t, userKey, res.UserKey)
	assert.Equal(t, "blob-pdf", res.BlobKey)
	assert.Equal(t, "report.pdf", res.Name)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, int64(2048), res.Size)
	assert.Equal(t, "https://storage.googleapis.com/app-bucket/example.com/report.pdf?content_type=application/pdf", res.PublicURL)
	assert.Empty(t, res.ImageURL)
	assert.Equal(t, "app-bucket/example.com", res.BucketName)
	assert.Equal(t, "app-bucket/example.com/report.pdf", res.GCSObjectPath)
	assert.False(t, res.CreatedAt.IsZero())

	assert.True(t, store.ACLApplied("app-bucket", "example.com/report.pdf"))

	// Round-trip through the repository
	got, err := svc.GetResource(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestCompleteUploadImage(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	store.SeedBlob(resource.BlobInfo{
		Key:         "blob-jpg",
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		Size:        4096,
	})

	res, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
		BlobKey: "blob-jpg",
		Raw:     headerBlock("/gs/app-bucket/example.com/photo.jpg"),
		Origin:  "http://example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "memory://serve/blob-jpg", res.ImageURL)
	assert.Empty(t, res.PublicURL)
	assert.False(t, store.ACLApplied("app-bucket", "example.com/photo.jpg"))
}

func TestCompleteUploadDerivationFailuresAreNonFatal(t *testing.T) {
	ctx := context.Background()

	t.Run("image serving URL failure", func(t *testing.T) {
		svc, _, store := setupTestService(t)
		store.SeedBlob(resource.BlobInfo{Key: "blob-jpg", Filename: "photo.jpg", ContentType: "image/jpeg", Size: 1})
		store.FailServingURLs(true)

		res, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			BlobKey: "blob-jpg",
			Raw:     headerBlock("/gs/app-bucket/dir/photo.jpg"),
		})
		require.NoError(t, err)
		assert.Empty(t, res.ImageURL)
		assert.Empty(t, res.PublicURL)
	})

	t.Run("acl patch failure", func(t *testing.T) {
		svc, _, store := setupTestService(t)
		store.SeedBlob(resource.BlobInfo{Key: "blob-pdf", Filename: "report.pdf", ContentType: "application/pdf", Size: 1})
		store.FailACL(true)

		res, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			BlobKey: "blob-pdf",
			Raw:     headerBlock("/gs/app-bucket/dir/report.pdf"),
		})
		require.NoError(t, err)
		assert.Empty(t, res.PublicURL)
		assert.Empty(t, res.ImageURL)
	})
}

func TestCompleteUploadFailures(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	store.SeedBlob(resource.BlobInfo{Key: "blob-1", Filename: "f", ContentType: "text/plain", Size: 1})

	t.Run("malformed header block", func(t *testing.T) {
		_, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			BlobKey: "blob-1",
			Raw:     []byte("no headers here"),
		})
		assert.ErrorIs(t, err, resource.ErrMalformedUploadMeta)
	})

	t.Run("unknown blob key", func(t *testing.T) {
		_, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			BlobKey: "missing",
			Raw:     headerBlock("/gs/app-bucket/dir/object"),
		})
		assert.ErrorIs(t, err, resource.ErrBlobNotFound)
	})

	t.Run("empty blob key", func(t *testing.T) {
		_, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			Raw: headerBlock("/gs/app-bucket/dir/object"),
		})
		assert.ErrorIs(t, err, resource.ErrBlobNotFound)
	})
}

// failingRepo wraps the memory repository and rejects every Put.
type failingRepo struct {
	*memoryrepo.Repository
}

func (f *failingRepo) Put(ctx context.Context, res *resource.Resource) (uuid.UUID, error) {
	return uuid.Nil, errors.New("datastore unavailable")
}

func TestCompleteUploadReclaimsBlobOnPersistFailure(t *testing.T) {
	ctx := context.Background()

	store := memorystorage.New()
	store.SeedBlob(resource.BlobInfo{Key: "blob-1", Filename: "f.bin", ContentType: "application/octet-stream", Size: 10})

	svc, err := resource.New(
		resource.WithRepository(&failingRepo{memoryrepo.New()}),
		resource.WithBlobStore(store),
		resource.WithObjectStore(store),
	)
	require.NoError(t, err)

	_, err = svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
		BlobKey: "blob-1",
		Raw:     headerBlock("/gs/app-bucket/dir/f.bin"),
	})
	require.Error(t, err)

	// The compensating delete reclaimed the blob.
	assert.False(t, store.HasBlob("blob-1"))
}

func TestUploadURLs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupTestService(t)

	urls, err := svc.UploadURLs(ctx, 3, "/api/v1/resource/upload/", "https://example.com")
	require.NoError(t, err)
	require.Len(t, urls, 3)
	for _, u := range urls {
		assert.Contains(t, u, "app-bucket/example.com")
	}

	// Each URL is independent
	assert.NotEqual(t, urls[0], urls[1])

	t.Run("count below one issues a single URL", func(t *testing.T) {
		urls, err := svc.UploadURLs(ctx, 0, "/api/v1/resource/upload/", "")
		require.NoError(t, err)
		require.Len(t, urls, 1)
		assert.Contains(t, urls[0], "app-bucket/no-origin")
	})
}

func seedResource(t *testing.T, svc resource.Service, store *memorystorage.Store, blobKey, filename, contentType string) *resource.Resource {
	t.Helper()

	store.SeedBlob(resource.BlobInfo{Key: blobKey, Filename: filename, ContentType: contentType, Size: 1})
	res, err := svc.CompleteUpload(context.Background(), resource.CompleteUploadRequest{
		BlobKey: blobKey,
		Raw:     headerBlock(fmt.Sprintf("/gs/app-bucket/dir/%s", filename)),
	})
	require.NoError(t, err)
	return res
}

func TestDeleteResource(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	res := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")

	deleted, err := svc.DeleteResource(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, res.Key, deleted.Key)

	// Record and blob are both gone.
	_, err = svc.GetResource(ctx, res.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	assert.False(t, store.HasBlob("blob-1"))

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.DeleteResource(ctx, uuid.New())
		assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	})
}

func TestDeleteResourceToleratesMissingBlob(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setupTestService(t)

	// Record pointing at a blob the store never held.
	res := &resource.Resource{BlobKey: "gone", Name: "a", ContentType: "text/plain"}
	key, err := repo.Put(ctx, res)
	require.NoError(t, err)

	deleted, err := svc.DeleteResource(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, deleted.Key)
}

func TestDeleteResourcesSkipsUnresolvedKeys(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	res := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")
	missing := uuid.New()

	err := svc.DeleteResources(ctx, []uuid.UUID{res.Key, missing})
	require.NoError(t, err)

	_, err = svc.GetResource(ctx, res.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	assert.False(t, store.HasBlob("blob-1"))

	t.Run("all keys unresolved is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.DeleteResources(ctx, []uuid.UUID{uuid.New(), uuid.New()}))
	})
}

func TestDeleteResourcesRetryAfterPartialBlobDeletion(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	res1 := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")
	res2 := seedResource(t, svc, store, "blob-2", "b.txt", "text/plain")

	// Simulate a previous attempt that deleted blob-1 before failing: the
	// retry must treat the missing blob as success and finish the batch.
	require.NoError(t, store.DeleteBlob(ctx, "blob-1"))

	err := svc.DeleteResources(ctx, []uuid.UUID{res1.Key, res2.Key})
	require.NoError(t, err)

	_, err = svc.GetResource(ctx, res1.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	_, err = svc.GetResource(ctx, res2.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	assert.False(t, store.HasBlob("blob-2"))
}

// recordingRepo wraps the memory repository and records DeleteMulti batches.
type recordingRepo struct {
	*memoryrepo.Repository
	batches [][]uuid.UUID
}

func (r *recordingRepo) DeleteMulti(ctx context.Context, keys []uuid.UUID) error {
	r.batches = append(r.batches, keys)
	return r.Repository.DeleteMulti(ctx, keys)
}

func TestDeleteResourcesCollapsesDuplicateKeys(t *testing.T) {
	ctx := context.Background()

	repo := &recordingRepo{Repository: memoryrepo.New()}
	store := memorystorage.New()
	svc, err := resource.New(
		resource.WithRepository(repo),
		resource.WithBlobStore(store),
		resource.WithObjectStore(store),
		resource.WithBucketName("app-bucket"),
	)
	require.NoError(t, err)

	res := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")

	require.NoError(t, svc.DeleteResources(ctx, []uuid.UUID{res.Key, res.Key}))

	// A repeated key must reach the repository once: strict backends check
	// the batch row count against the key set.
	require.Len(t, repo.batches, 1)
	assert.Equal(t, []uuid.UUID{res.Key}, repo.batches[0])

	_, err = svc.GetResource(ctx, res.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
	assert.False(t, store.HasBlob("blob-1"))
}

// recordingSink records lifecycle notifications.
type recordingSink struct {
	created []uuid.UUID
	deleted []uuid.UUID
}

func (s *recordingSink) ResourceCreated(ctx context.Context, res *resource.Resource) error {
	s.created = append(s.created, res.Key)
	return nil
}

func (s *recordingSink) ResourceDeleted(ctx context.Context, key uuid.UUID) error {
	s.deleted = append(s.deleted, key)
	return nil
}

// failingSink rejects every notification.
type failingSink struct{}

func (failingSink) ResourceCreated(ctx context.Context, res *resource.Resource) error {
	return errors.New("sink unavailable")
}

func (failingSink) ResourceDeleted(ctx context.Context, key uuid.UUID) error {
	return errors.New("sink unavailable")
}

func setupSinkService(t *testing.T, sink resource.EventSink) (resource.Service, *memorystorage.Store) {
	t.Helper()

	store := memorystorage.New()
	svc, err := resource.New(
		resource.WithRepository(memoryrepo.New()),
		resource.WithBlobStore(store),
		resource.WithObjectStore(store),
		resource.WithEventSink(sink),
		resource.WithBucketName("app-bucket"),
	)
	require.NoError(t, err)
	return svc, store
}

func TestEventSinkNotifications(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	svc, store := setupSinkService(t, sink)

	res1 := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")
	res2 := seedResource(t, svc, store, "blob-2", "b.txt", "text/plain")
	assert.Equal(t, []uuid.UUID{res1.Key, res2.Key}, sink.created)

	_, err := svc.DeleteResource(ctx, res1.Key)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{res1.Key}, sink.deleted)

	require.NoError(t, svc.DeleteResources(ctx, []uuid.UUID{res2.Key}))
	assert.Equal(t, []uuid.UUID{res1.Key, res2.Key}, sink.deleted)
}

func TestEventSinkFailureDoesNotFailOperations(t *testing.T) {
	ctx := context.Background()
	svc, store := setupSinkService(t, failingSink{})

	res := seedResource(t, svc, store, "blob-1", "a.txt", "text/plain")

	_, err := svc.DeleteResource(ctx, res.Key)
	require.NoError(t, err)
	_, err = svc.GetResource(ctx, res.Key)
	assert.ErrorIs(t, err, resource.ErrResourceNotFound)
}

func TestBlobDeleteIdempotence(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	store.SeedBlob(resource.BlobInfo{Key: "blob-1", Filename: "f", ContentType: "text/plain", Size: 1})

	require.NoError(t, store.DeleteBlob(ctx, "blob-1"))

	// Second delete reports not-found, which delete flows accept as success.
	err := store.DeleteBlob(ctx, "blob-1")
	assert.ErrorIs(t, err, resource.ErrBlobNotFound)
}

func TestURLExclusivity(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupTestService(t)

	store.SeedBlob(resource.BlobInfo{Key: "b1", Filename: "p.png", ContentType: "image/png", Size: 1})
	store.SeedBlob(resource.BlobInfo{Key: "b2", Filename: "d.doc", ContentType: "application/msword", Size: 1})

	for _, blobKey := range []string{"b1", "b2"} {
		res, err := svc.CompleteUpload(ctx, resource.CompleteUploadRequest{
			BlobKey: blobKey,
			Raw:     headerBlock("/gs/app-bucket/dir/" + blobKey),
		})
		require.NoError(t, err)
		assert.False(t, res.ImageURL != "" && res.PublicURL != "",
			"image_url and public_url must never both be populated")
	}
}
