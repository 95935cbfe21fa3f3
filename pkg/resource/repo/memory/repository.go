package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/resource-store/pkg/resource"
)

// Repository implements resource.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	resources map[uuid.UUID]*resource.Resource
	order     []entry // creation order, for cursor-based listing
	nextSeq   uint64
}

// entry keeps a monotonic sequence per record so cursors survive deletions.
type entry struct {
	seq uint64
	key uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		resources: make(map[uuid.UUID]*resource.Resource),
	}
}

func (r *Repository) Get(ctx context.Context, key uuid.UUID) (*resource.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, exists := r.resources[key]
	if !exists {
		return nil, resource.ErrResourceNotFound
	}

	// Return a copy to prevent external modifications
	resCopy := *res
	return &resCopy, nil
}

func (r *Repository) GetMulti(ctx context.Context, keys []uuid.UUID) ([]*resource.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*resource.Resource, len(keys))
	for i, key := range keys {
		if res, exists := r.resources[key]; exists {
			resCopy := *res
			result[i] = &resCopy
		}
	}
	return result, nil
}

func (r *Repository) List(ctx context.Context, limit int, cursor string) ([]*resource.Resource, string, error) {
	if limit < 1 {
		limit = 1
	}

	afterSeq, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*resource.Resource
	var lastSeq uint64
	for _, e := range r.order {
		if e.seq <= afterSeq {
			continue
		}
		if len(result) == limit {
			// One more record exists past the page, so the cursor stands.
			return result, encodeCursor(lastSeq), nil
		}
		resCopy := *r.resources[e.key]
		result = append(result, &resCopy)
		lastSeq = e.seq
	}

	return result, "", nil
}

func (r *Repository) Put(ctx context.Context, res *resource.Resource) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	resCopy := *res
	if resCopy.Key == uuid.Nil {
		resCopy.Key = uuid.New()
	}
	now := time.Now().UTC()
	if resCopy.CreatedAt.IsZero() {
		resCopy.CreatedAt = now
	}
	if resCopy.UpdatedAt.IsZero() {
		resCopy.UpdatedAt = now
	}

	if _, exists := r.resources[resCopy.Key]; !exists {
		r.nextSeq++
		r.order = append(r.order, entry{seq: r.nextSeq, key: resCopy.Key})
	}
	r.resources[resCopy.Key] = &resCopy

	res.Key = resCopy.Key
	return resCopy.Key, nil
}

// DeleteMulti removes all named records or none: every key is verified
// present before any record is touched.
func (r *Repository) DeleteMulti(ctx context.Context, keys []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if _, exists := r.resources[key]; !exists {
			return &resource.TransactionError{
				Op:   "delete",
				Keys: keys,
				Err:  fmt.Errorf("%w: %s", resource.ErrResourceNotFound, key),
			}
		}
	}

	deleted := make(map[uuid.UUID]bool, len(keys))
	for _, key := range keys {
		delete(r.resources, key)
		deleted[key] = true
	}

	order := r.order[:0]
	for _, e := range r.order {
		if !deleted[e.key] {
			order = append(order, e)
		}
	}
	r.order = order

	return nil
}

func encodeCursor(seq uint64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatUint(seq, 10)))
}

func decodeCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", resource.ErrInvalidCursor, err)
	}
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", resource.ErrInvalidCursor, err)
	}
	return seq, nil
}
