// Package config wires repository and storage implementations into a
// resource.Service from declarative server configuration.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/resource-store/pkg/resource"
	memoryrepo "github.com/tendant/resource-store/pkg/resource/repo/memory"
	postgresrepo "github.com/tendant/resource-store/pkg/resource/repo/postgres"
	memorystorage "github.com/tendant/resource-store/pkg/resource/storage/memory"
	s3storage "github.com/tendant/resource-store/pkg/resource/storage/s3"
)

// ServerConfig represents server configuration for the resource store service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	StorageType string // "memory", "s3"
	S3          s3storage.Config

	// BucketName is the base bucket recorded on computed per-origin
	// bucket paths
	BucketName string

	// EnableEventLogging switches the slog event sink on
	EnableEventLogging bool
}

// Default returns the configuration defaults: in-memory everything, suited
// for development and tests.
func Default() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		StorageType:  "memory",
		BucketName:   "uploads",
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.StorageType != "memory" && c.StorageType != "s3" {
		return errors.New("storage_type must be 'memory' or 's3'")
	}
	if c.StorageType == "s3" && c.S3.Bucket == "" {
		return errors.New("s3 bucket is required when using s3 storage")
	}

	if c.BucketName == "" {
		return errors.New("bucket name is required")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (resource.Service, error) {
	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	blobs, objects, err := c.buildStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage: %w", err)
	}

	options := []resource.Option{
		resource.WithRepository(repo),
		resource.WithBlobStore(blobs),
		resource.WithObjectStore(objects),
		resource.WithBucketName(c.BucketName),
	}
	if c.EnableEventLogging {
		options = append(options, resource.WithEventSink(resource.NewLogEventSink()))
	}

	return resource.New(options...)
}

func (c *ServerConfig) buildRepository(ctx context.Context) (resource.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return postgresrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorage() (resource.BlobStore, resource.ObjectStore, error) {
	switch c.StorageType {
	case "memory":
		store := memorystorage.New()
		return store, store, nil
	case "s3":
		store, err := s3storage.New(c.S3)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}
