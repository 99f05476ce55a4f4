package records

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/recordbook/pkg/photo"
)

// Saver flushes the full collection after each committed mutation.
type Saver interface {
	Save(ctx context.Context, collection []Record) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, collection []Record) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, collection []Record) error { return f(ctx, collection) }

// DeleteListener is told the index a record occupied before it was removed.
type DeleteListener func(index int)

// Store is the ordered record collection. Insertion order is display order
// and indices are always 0..Len()-1.
type Store struct {
	mu        sync.RWMutex
	records   []Record
	saver     Saver
	listeners []DeleteListener
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store that flushes through saver. A nil saver
// keeps the collection in memory only.
func NewStore(saver Saver, opts ...Option) *Store {
	s := &Store{saver: saver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnDelete registers a listener called after each successful removal.
func (s *Store) OnDelete(l DeleteListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Create appends a record and saves the collection. On validation failure
// nothing changes. If only the save fails, the record stays and the
// returned index is valid alongside the error.
func (s *Store) Create(ctx context.Context, title string, images []photo.Durable) (int, error) {
	if err := Validate(title, images); err != nil {
		return -1, err
	}

	rec := Record{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		Images:    append([]photo.Durable(nil), images...),
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	index := len(s.records) - 1
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.save(ctx, snapshot); err != nil {
		return index, fmt.Errorf("records: save after create: %w", err)
	}
	return index, nil
}

// Delete removes the record at index, notifies listeners and saves.
func (s *Store) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	if err := CheckIndex(index, len(s.records)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.records = append(s.records[:index:index], s.records[index+1:]...)
	snapshot := s.snapshotLocked()
	listeners := append([]DeleteListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(index)
	}

	if err := s.save(ctx, snapshot); err != nil {
		return fmt.Errorf("records: save after delete: %w", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, snapshot []Record) error {
	if s.saver == nil {
		return nil
	}
	return s.saver.Save(ctx, snapshot)
}

// Get returns a copy of the record at index.
func (s *Store) Get(index int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := CheckIndex(index, len(s.records)); err != nil {
		return Record{}, err
	}
	return s.records[index].clone(), nil
}

// List returns one summary per record in display order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, len(s.records))
	for i, r := range s.records {
		out[i] = Summary{Index: i, Title: r.Title, ImageCount: len(r.Images)}
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a deep copy of the collection.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Replace swaps in a loaded collection without saving or notifying listeners.
func (s *Store) Replace(collection []Record) {
	next := make([]Record, len(collection))
	for i, r := range collection {
		next[i] = r.clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
}

func (s *Store) snapshotLocked() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}
