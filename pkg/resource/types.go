package resource

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resource represents an uploaded binary resource tracked in the metadata
// store. Records are created exactly once at upload completion and never
// mutated afterwards; the only other lifecycle transition is deletion, which
// also removes the referenced blob.
type Resource struct {
	Key           uuid.UUID `json:"key"`
	UserKey       uuid.UUID `json:"user_key,omitempty"`
	BlobKey       string    `json:"blob_key"`
	Name          string    `json:"name"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	ImageURL      string    `json:"image_url,omitempty"`
	PublicURL     string    `json:"public_url,omitempty"`
	BucketName    string    `json:"bucket_name"`
	GCSObjectPath string    `json:"gcs_object_path"`
	CreatedAt     time.Time `json:"created"`
	UpdatedAt     time.Time `json:"updated"`
}

// IsImage reports whether the resource's content type indicates an image.
func (r *Resource) IsImage() bool {
	return strings.HasPrefix(r.ContentType, "image")
}

// BlobInfo is the metadata the blob store holds for an uploaded blob.
type BlobInfo struct {
	Key         string
	Filename    string
	ContentType string
	Size        int64
}
