package resource

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tendant/resource-store/pkg/resource/gcsmeta"
)

// Error types
var (
	// ErrResourceNotFound indicates a resource record was not found
	ErrResourceNotFound = errors.New("resource not found")

	// ErrBlobNotFound indicates a blob was not found in the blob store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrMalformedUploadMeta indicates the uploaded part carried no usable
	// storage-provider metadata
	ErrMalformedUploadMeta = gcsmeta.ErrMalformed

	// ErrACLPatch indicates the provider rejected an ACL assignment.
	// Non-fatal to upload completion: the record is persisted without a
	// public URL.
	ErrACLPatch = errors.New("object acl patch failed")

	// ErrServingURLDerivation indicates an image serving URL could not be
	// derived. Non-fatal to upload completion.
	ErrServingURLDerivation = errors.New("serving url derivation failed")

	// ErrMissingUploadFile indicates the upload completion request carried
	// no file part
	ErrMissingUploadFile = errors.New("missing upload file")

	// ErrInvalidCursor indicates a list cursor could not be decoded
	ErrInvalidCursor = errors.New("invalid cursor")
)

// ResourceError represents an error related to resource operations
type ResourceError struct {
	Key uuid.UUID
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource operation %s failed for resource %s: %v", e.Op, e.Key, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob or object storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TransactionError represents a failed atomic multi-key write against the
// metadata store. Nothing named by Keys was committed.
type TransactionError struct {
	Op   string
	Keys []uuid.UUID
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed for %d key(s): %v", e.Op, len(e.Keys), e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
