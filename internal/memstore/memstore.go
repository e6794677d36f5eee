// Package memstore is an in-process record store with the same contract as the
// PostgreSQL repository. It backs LABELDROP_STORE=memory and workflow tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/LabelDrop/internal/live"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// Store keeps records in a map guarded by an RWMutex and wakes every listener
// after each write.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*model.UploadRecord
	listeners map[*feed]struct{}
	now       func() time.Time

	// DenyReads makes every read fail with ErrPermissionDenied, mirroring a
	// database role without SELECT on subidas.
	DenyReads bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		records:   make(map[string]*model.UploadRecord),
		listeners: make(map[*feed]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a copy of rec and assigns ID and CreatedAt.
func (s *Store) Create(_ context.Context, rec *model.UploadRecord) error {
	if len(rec.Files) == 0 {
		return model.WrapError(model.ErrValidation, "insert record", fmt.Errorf("record has no files"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.tick()
	if rec.Status == "" {
		rec.Status = model.StatusPending
	}
	s.records[rec.ID] = clone(rec)
	s.notifyLocked()
	return nil
}

// Put stores rec as is. Tests use it to seed legacy data.
func (s *Store) Put(rec model.UploadRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = clone(&rec)
	s.notifyLocked()
}

// Get returns a copy of the record.
func (s *Store) Get(_ context.Context, id string) (*model.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DenyReads {
		return nil, model.WrapError(model.ErrPermissionDenied, "select record", fmt.Errorf("reads denied"))
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, model.WrapError(model.ErrNotFound, "select record", fmt.Errorf("record %s", id))
	}
	return clone(rec), nil
}

// ListRecent returns at most limit records, newest first.
func (s *Store) ListRecent(_ context.Context, limit int) ([]model.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DenyReads {
		return nil, model.WrapError(model.ErrPermissionDenied, "list records", fmt.Errorf("reads denied"))
	}
	out := make([]model.UploadRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *clone(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus applies the same compare-and-set rule as the SQL repository.
func (s *Store) UpdateStatus(_ context.Context, id string, from, to model.Status) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return time.Time{}, model.WrapError(model.ErrNotFound, "update status", fmt.Errorf("record %s", id))
	}
	if rec.Status != from {
		return time.Time{}, model.WrapError(model.ErrIllegalTransition, "update status",
			fmt.Errorf("record %s is %s, expected %s", id, rec.Status, from))
	}
	at := s.tick()
	switch to {
	case model.StatusPrinted:
		rec.PrintedAt = &at
	case model.StatusShipped:
		rec.ShippedAt = &at
	default:
		return time.Time{}, model.WrapError(model.ErrValidation, "update status", fmt.Errorf("no transition into %q", to))
	}
	rec.Status = to
	s.notifyLocked()
	return at, nil
}

// SetPageCounts stores the page count of each attached file, in order.
func (s *Store) SetPageCounts(_ context.Context, id string, pages []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return model.WrapError(model.ErrNotFound, "set page counts", fmt.Errorf("record %s", id))
	}
	if len(pages) != len(rec.Files) {
		return model.WrapError(model.ErrValidation, "set page counts",
			fmt.Errorf("got %d counts for %d files", len(pages), len(rec.Files)))
	}
	for i := range rec.Files {
		rec.Files[i].Pages = pages[i]
	}
	s.notifyLocked()
	return nil
}

// Listen registers a feed woken by every write.
func (s *Store) Listen(_ context.Context) (live.Feed, error) {
	f := &feed{store: s, wake: make(chan struct{}, 1)}
	s.mu.Lock()
	s.listeners[f] = struct{}{}
	s.mu.Unlock()
	return f, nil
}

// tick returns a strictly increasing clock so creation order is total even
// when two writes land in the same nanosecond.
func (s *Store) tick() time.Time {
	now := s.now()
	for _, rec := range s.records {
		if !now.After(rec.CreatedAt) {
			now = rec.CreatedAt.Add(time.Microsecond)
		}
	}
	return now
}

func (s *Store) notifyLocked() {
	for f := range s.listeners {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
}

type feed struct {
	store *Store
	wake  chan struct{}
	once  sync.Once
}

func (f *feed) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.wake:
		return nil
	}
}

func (f *feed) Close() {
	f.once.Do(func() {
		f.store.mu.Lock()
		delete(f.store.listeners, f)
		f.store.mu.Unlock()
	})
}

func clone(rec *model.UploadRecord) *model.UploadRecord {
	c := *rec
	c.Files = append([]model.FileRef(nil), rec.Files...)
	return &c
}
