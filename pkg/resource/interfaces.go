package resource

import (
	"context"

	"github.com/google/uuid"
)

// BlobStore defines the interface for the external large-object store.
type BlobStore interface {
	// CreateUploadURL returns a one-time direct-upload URL scoped to the
	// given success path, optionally pinned to a bucket path. Each call is
	// independent; no local state is held.
	CreateUploadURL(ctx context.Context, successPath, bucketPath string) (string, error)

	// GetBlobInfo fetches metadata for a previously uploaded blob.
	// Returns ErrBlobNotFound when the key is unknown.
	GetBlobInfo(ctx context.Context, blobKey string) (*BlobInfo, error)

	// DeleteBlob deletes a blob. Returns ErrBlobNotFound when already
	// absent; delete flows treat that as success.
	DeleteBlob(ctx context.Context, blobKey string) error

	// GetImageServingURL derives a serving URL for an image blob.
	// Returns ErrServingURLDerivation when derivation fails; callers treat
	// the failure as non-fatal.
	GetImageServingURL(ctx context.Context, blobKey string) (string, error)
}

// ObjectStore defines the interface for the external bucket/object storage.
type ObjectStore interface {
	// SetACL assigns the fixed ACL policy to an object: owner roles for the
	// project owners and editors groups, reader for the viewers group and
	// public read for all unauthenticated principals. Returns ErrACLPatch
	// on provider-side failure.
	SetACL(ctx context.Context, bucket, objectPath string) error

	// PublicURLFor composes the externally reachable URL for an object.
	// Pure string composition, no I/O; only meaningful once SetACL
	// succeeded.
	PublicURLFor(bucket, objectPath, contentType string) string
}

// Repository defines the interface for resource record persistence.
type Repository interface {
	// Get returns the resource for key, or ErrResourceNotFound.
	Get(ctx context.Context, key uuid.UUID) (*Resource, error)

	// GetMulti returns one entry per requested key, preserving input order.
	// Missing keys map to nil entries rather than failing the call.
	GetMulti(ctx context.Context, keys []uuid.UUID) ([]*Resource, error)

	// List returns up to limit resources in creation order, starting after
	// the position encoded by cursor. The returned cursor is empty once the
	// end is reached. A garbage cursor yields ErrInvalidCursor.
	List(ctx context.Context, limit int, cursor string) ([]*Resource, string, error)

	// Put persists a resource, assigning a new key when the record carries
	// the zero key. The single-record write is atomic.
	Put(ctx context.Context, res *Resource) (uuid.UUID, error)

	// DeleteMulti removes all named records as one atomic unit: either
	// every key is removed or none are. A missing key fails the whole
	// batch with nothing committed. Keys must be distinct; implementations
	// may verify the batch by counting removed rows.
	DeleteMulti(ctx context.Context, keys []uuid.UUID) error
}

// EventSink defines the interface for resource lifecycle notifications.
// Sink failures are logged by the service and never fail the operation.
type EventSink interface {
	// ResourceCreated is fired after a resource record is persisted
	ResourceCreated(ctx context.Context, res *Resource) error

	// ResourceDeleted is fired after a resource record and its blob are deleted
	ResourceDeleted(ctx context.Context, key uuid.UUID) error
}
