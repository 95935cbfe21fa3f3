package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/tendant/resource-store/pkg/resource"
)

// Config options for the S3-compatible store
type Config struct {
	Region          string // AWS region
	Bucket          string // bucket holding uploaded blobs
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// PublicURLBase is the base of composed public URLs
	// (default: https://storage.googleapis.com)
	PublicURLBase string

	// Canonical IDs of the principal groups granted on every public object
	OwnersID  string
	EditorsID string
	ViewersID string
}

// allUsersURI is the grantee URI for unauthenticated principals.
const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

const defaultPublicURLBase = "https://storage.googleapis.com"

// Store is an S3-compatible implementation of the resource.BlobStore and
// resource.ObjectStore interfaces.
type Store struct {
	client          *s3.Client
	presignClient   *s3.PresignClient
	bucket          string
	presignDuration time.Duration
	config          Config
}

var (
	_ resource.BlobStore   = (*Store)(nil)
	_ resource.ObjectStore = (*Store)(nil)
)

// New creates a new S3-compatible store
func New(config Config) (*Store, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600 // 1 hour default
	}
	if config.PublicURLBase == "" {
		config.PublicURLBase = defaultPublicURLBase
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Store{
		client:          client,
		presignClient:   s3.NewPresignClient(client),
		bucket:          config.Bucket,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}, nil
}

// CreateUploadURL returns a presigned one-time PUT URL under the given bucket
// path. The success path travels as object metadata so the completion
// callback can be correlated.
func (s *Store) CreateUploadURL(ctx context.Context, successPath, bucketPath string) (string, error) {
	objectKey := fmt.Sprintf("%s/%s", bucketPath, uuid.New())

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		Metadata: map[string]string{"success-path": successPath},
	}

	result, err := s.presignClient.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignDuration
	})
	if err != nil {
		return "", &resource.StorageError{Backend: "s3", Key: objectKey, Op: "create_upload_url", Err: err}
	}

	return result.URL, nil
}

// GetBlobInfo retrieves metadata for an uploaded blob
func (s *Store) GetBlobInfo(ctx context.Context, blobKey string) (*resource.BlobInfo, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, &resource.StorageError{Backend: "s3", Key: blobKey, Op: "get_blob_info", Err: resource.ErrBlobNotFound}
		}
		return nil, &resource.StorageError{Backend: "s3", Key: blobKey, Op: "get_blob_info", Err: err}
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}

	filename := result.Metadata["filename"]
	if filename == "" {
		filename = path.Base(blobKey)
	}

	var size int64
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return &resource.BlobInfo{
		Key:         blobKey,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// DeleteBlob deletes a blob. S3 reports success for absent keys, which
// matches the idempotent contract callers rely on.
func (s *Store) DeleteBlob(ctx context.Context, blobKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey),
	})
	if err != nil {
		return &resource.StorageError{Backend: "s3", Key: blobKey, Op: "delete_blob", Err: err}
	}
	return nil
}

// GetImageServingURL returns a presigned inline GET URL for an image blob
func (s *Store) GetImageServingURL(ctx context.Context, blobKey string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(blobKey),
		ResponseContentDisposition: aws.String("inline"),
	}

	result, err := s.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignDuration
	})
	if err != nil {
		return "", &resource.StorageError{
			Backend: "s3",
			Key:     blobKey,
			Op:      "get_image_serving_url",
			Err:     fmt.Errorf("%w: %v", resource.ErrServingURLDerivation, err),
		}
	}

	return result.URL, nil
}

// SetACL assigns the fixed grant policy to an object: full control for the
// owners and editors groups, read for the viewers group and read for all
// unauthenticated users.
func (s *Store) SetACL(ctx context.Context, bucket, objectPath string) error {
	_, err := s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
		AccessControlPolicy: &types.AccessControlPolicy{
			Owner:  &types.Owner{ID: aws.String(s.config.OwnersID)},
			Grants: s.grants(),
		},
	})
	if err != nil {
		return &resource.StorageError{
			Backend: "s3",
			Key:     fmt.Sprintf("%s/%s", bucket, objectPath),
			Op:      "set_acl",
			Err:     fmt.Errorf("%w: %v", resource.ErrACLPatch, err),
		}
	}
	return nil
}

func (s *Store) grants() []types.Grant {
	return []types.Grant{
		{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(s.config.OwnersID)},
			Permission: types.PermissionFullControl,
		},
		{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(s.config.EditorsID)},
			Permission: types.PermissionFullControl,
		},
		{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(s.config.ViewersID)},
			Permission: types.PermissionRead,
		},
		{
			Grantee:    &types.Grantee{Type: types.TypeGroup, URI: aws.String(allUsersURI)},
			Permission: types.PermissionRead,
		},
	}
}

// PublicURLFor composes the externally reachable URL for a public object
func (s *Store) PublicURLFor(bucket, objectPath, contentType string) string {
	return fmt.Sprintf("%s/%s/%s?content_type=%s", s.config.PublicURLBase, bucket, objectPath, contentType)
}
