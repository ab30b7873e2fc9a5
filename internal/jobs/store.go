package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anishko/Ekho/internal/domain"
)

// Store is the single source of truth for job records. Put replaces the whole
// record; there are no partial-field updates, callers read-modify-write.
type Store interface {
	Put(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Job, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps job records in process memory. Reads observe the latest
// committed Put; records handed out are copies, so callers can never mutate
// the canonical state behind the store's back.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	seq  map[string]uint64
	next uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*domain.Job),
		seq:  make(map[string]uint64),
	}
}

// Put inserts or fully replaces the record for job.ID.
func (s *MemoryStore) Put(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seq[job.ID]; !ok {
		s.next++
		s.seq[job.ID] = s.next
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a copy of the record, or domain.ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// ListByOwner returns the owner's jobs ordered by creation time ascending.
// Ties fall back to insertion order so the listing is stable.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}

// DeleteTerminalBefore removes succeeded/failed jobs last updated before the
// cutoff and reports how many were removed. Non-terminal jobs are never
// touched.
func (s *MemoryStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.seq, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
