package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/resource-store/pkg/resource"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// txBeginner is satisfied by pgxpool.Pool and pgx.Conn; DeleteMulti needs it
// to open its transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements resource.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("resource already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return resource.ErrResourceNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const resourceColumns = `key, user_key, blob_key, name, content_type, size,
		image_url, public_url, bucket_name, gcs_object_path, created_at, updated_at`

func scanResource(row pgx.Row) (*resource.Resource, error) {
	var res resource.Resource
	err := row.Scan(
		&res.Key, &res.UserKey, &res.BlobKey, &res.Name, &res.ContentType,
		&res.Size, &res.ImageURL, &res.PublicURL, &res.BucketName,
		&res.GCSObjectPath, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Repository) Get(ctx context.Context, key uuid.UUID) (*resource.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resource WHERE key = $1`, resourceColumns)

	res, err := scanResource(r.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, r.handlePostgresError("get resource", err)
	}
	return res, nil
}

func (r *Repository) GetMulti(ctx context.Context, keys []uuid.UUID) ([]*resource.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resource WHERE key = ANY($1)`, resourceColumns)

	rows, err := r.db.Query(ctx, query, keys)
	if err != nil {
		return nil, r.handlePostgresError("get resources", err)
	}
	defer rows.Close()

	byKey := make(map[uuid.UUID]*resource.Resource, len(keys))
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, r.handlePostgresError("get resources", err)
		}
		byKey[res.Key] = res
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("get resources", err)
	}

	// Preserve input order; absent keys stay nil.
	result := make([]*resource.Resource, len(keys))
	for i, key := range keys {
		result[i] = byKey[key]
	}
	return result, nil
}

func (r *Repository) List(ctx context.Context, limit int, cursor string) ([]*resource.Resource, string, error) {
	if limit < 1 {
		limit = 1
	}

	afterCreated, afterKey, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	// Keyset pagination in creation order; limit+1 probes for a next page.
	query := fmt.Sprintf(`
		SELECT %s FROM resource
		WHERE (created_at, key) > ($1, $2)
		ORDER BY created_at, key
		LIMIT $3`, resourceColumns)

	rows, err := r.db.Query(ctx, query, afterCreated, afterKey, limit+1)
	if err != nil {
		return nil, "", r.handlePostgresError("list resources", err)
	}
	defer rows.Close()

	var result []*resource.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, "", r.handlePostgresError("list resources", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, "", r.handlePostgresError("list resources", err)
	}

	var nextCursor string
	if len(result) > limit {
		result = result[:limit]
		last := result[limit-1]
		nextCursor = encodeCursor(last.CreatedAt, last.Key)
	}
	return result, nextCursor, nil
}

func (r *Repository) Put(ctx context.Context, res *resource.Resource) (uuid.UUID, error) {
	if res.Key == uuid.Nil {
		res.Key = uuid.New()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = now
	}

	query := `
		INSERT INTO resource (
			key, user_key, blob_key, name, content_type, size,
			image_url, public_url, bucket_name, gcs_object_path,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		res.Key, res.UserKey, res.BlobKey, res.Name, res.ContentType,
		res.Size, res.ImageURL, res.PublicURL, res.BucketName,
		res.GCSObjectPath, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return uuid.Nil, r.handlePostgresError("put resource", err)
	}

	return res.Key, nil
}

// DeleteMulti removes all named records inside one transaction. A row-count
// mismatch means some key was absent; the transaction rolls back and nothing
// is committed.
func (r *Repository) DeleteMulti(ctx context.Context, keys []uuid.UUID) error {
	beginner, ok := r.db.(txBeginner)
	if !ok {
		return fmt.Errorf("delete resources: connection does not support transactions")
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return &resource.TransactionError{Op: "delete", Keys: keys, Err: err}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM resource WHERE key = ANY($1)`, keys)
	if err != nil {
		return &resource.TransactionError{Op: "delete", Keys: keys, Err: r.handlePostgresError("delete resources", err)}
	}
	if tag.RowsAffected() != int64(len(keys)) {
		return &resource.TransactionError{Op: "delete", Keys: keys, Err: resource.ErrResourceNotFound}
	}

	if err := tx.Commit(ctx); err != nil {
		return &resource.TransactionError{Op: "delete", Keys: keys, Err: err}
	}
	return nil
}

func encodeCursor(createdAt time.Time, key uuid.UUID) string {
	raw := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), key)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		// Zero bounds sort before every real row.
		return time.Time{}, uuid.Nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", resource.ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: missing separator", resource.ErrInvalidCursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", resource.ErrInvalidCursor, err)
	}
	key, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", resource.ErrInvalidCursor, err)
	}
	return createdAt, key, nil
}
