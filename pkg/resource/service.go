package resource

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface of the resource store library.
type Service interface {
	// CompleteUpload persists a resource record for a finished
	// direct-to-blob-store upload and returns it.
	CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*Resource, error)

	// UploadURLs returns count one-time direct-upload URLs.
	UploadURLs(ctx context.Context, count int, successPath, origin string) ([]string, error)

	// GetResource returns a single resource, or ErrResourceNotFound.
	GetResource(ctx context.Context, key uuid.UUID) (*Resource, error)

	// GetResources returns one entry per key, preserving input order;
	// missing keys yield nil entries.
	GetResources(ctx context.Context, keys []uuid.UUID) ([]*Resource, error)

	// ListResources returns a page of resources in creation order plus the
	// cursor for the next page (empty at the end).
	ListResources(ctx context.Context, limit int, cursor string) ([]*Resource, string, error)

	// DeleteResource deletes one resource together with its blob and
	// returns the deleted record.
	DeleteResource(ctx context.Context, key uuid.UUID) (*Resource, error)

	// DeleteResources deletes the blobs of all resolvable keys, then
	// removes their records in one atomic metadata transaction. Keys that
	// do not resolve are skipped.
	DeleteResources(ctx context.Context, keys []uuid.UUID) error
}
