package resource

import "github.com/google/uuid"

// CompleteUploadRequest carries everything the upload-completion callback
// hands over for one uploaded file part.
type CompleteUploadRequest struct {
	// UserKey references the uploading actor; uuid.Nil for anonymous uploads.
	UserKey uuid.UUID

	// BlobKey is the opaque token the blob store embedded in the part's
	// content-type parameters at upload time.
	BlobKey string

	// Raw holds the part's leading bytes: the provider response headers as
	// a MIME-style header block, followed by payload.
	Raw []byte

	// Origin is the requesting site's origin header, used to compute the
	// bucket path recorded on the resource.
	Origin string
}
