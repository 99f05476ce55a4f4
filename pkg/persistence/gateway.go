// Package persistence serializes the record collection into a key-value
// store as a single JSON document.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/recordbook/pkg/kv"
	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/records"
)

// DefaultKey is the storage key holding the collection.
const DefaultKey = "records"

var (
	// ErrCorruptState matches every *CorruptStateError.
	ErrCorruptState = errors.New("persistence: stored state is corrupt")

	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence: store rejected write")
)

// CorruptStateError reports a stored document that cannot be turned back
// into a valid collection.
type CorruptStateError struct {
	Key    string
	Record int // -1 when the document itself is malformed
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("persistence: corrupt document at key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("persistence: corrupt record %d at key %q: %v", e.Record, e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorruptState) true.
func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }

// PersistenceError reports a store operation failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) true.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// recordDocument is the stored shape of a record. Title and images are the
// required fields; id and created_at are optional on read.
type recordDocument struct {
	Title     string     `json:"title"`
	Images    []string   `json:"images"`
	ID        string     `json:"id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Gateway loads and saves the whole collection under one key.
type Gateway struct {
	store kv.Store
	key   string
}

var _ records.Saver = (*Gateway)(nil)

// NewGateway creates a gateway. An empty key means DefaultKey.
func NewGateway(store kv.Store, key string) *Gateway {
	if key == "" {
		key = DefaultKey
	}
	return &Gateway{store: store, key: key}
}

// Key returns the storage key.
func (g *Gateway) Key() string { return g.key }

// Load reads the collection. An absent key or a stored null yields an empty
// collection.
func (g *Gateway) Load(ctx context.Context) ([]records.Record, error) {
	raw, err := g.store.Get(ctx, g.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []records.Record{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Key: g.key, Err: err}
	}
	return Decode(g.key, raw)
}

// Raw returns the stored document bytes, or nil when the key is absent.
func (g *Gateway) Raw(ctx context.Context) ([]byte, error) {
	raw, err := g.store.Get(ctx, g.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Key: g.key, Err: err}
	}
	return raw, nil
}

// Save replaces the stored document with collection.
func (g *Gateway) Save(ctx context.Context, collection []records.Record) error {
	data, err := Encode(collection)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: g.key, Err: err}
	}
	if err := g.store.Set(ctx, g.key, data); err != nil {
		return &PersistenceError{Op: "save", Key: g.key, Err: err}
	}
	slog.Debug("persistence: saved collection", "key", g.key, "records", len(collection), "bytes", len(data))
	return nil
}

// Encode renders collection in the stored document format.
func Encode(collection []records.Record) ([]byte, error) {
	docs := make([]recordDocument, len(collection))
	for i, r := range collection {
		images := make([]string, len(r.Images))
		for j, img := range r.Images {
			images[j] = img.String()
		}
		doc := recordDocument{Title: r.Title, Images: images, ID: r.ID.String()}
		if !r.CreatedAt.IsZero() {
			created := r.CreatedAt
			doc.CreatedAt = &created
		}
		docs[i] = doc
	}
	return json.Marshal(docs)
}

// Decode parses a stored document. key is only used in error messages.
func Decode(key string, raw []byte) ([]records.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []records.Record{}, nil
	}

	var docs []*recordDocument
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, &CorruptStateError{Key: key, Record: -1, Err: err}
	}

	out := make([]records.Record, 0, len(docs))
	for i, doc := range docs {
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, &CorruptStateError{Key: key, Record: i, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(doc *recordDocument) (records.Record, error) {
	if doc == nil {
		return records.Record{}, errors.New("null record")
	}

	images := make([]photo.Durable, len(doc.Images))
	for i, s := range doc.Images {
		d, err := photo.ParseDurable(s)
		if err != nil {
			return records.Record{}, fmt.Errorf("image %d: %w", i, err)
		}
		images[i] = d
	}

	id := uuid.Nil
	if doc.ID != "" {
		parsed, err := uuid.Parse(doc.ID)
		if err != nil {
			return records.Record{}, fmt.Errorf("id: %w", err)
		}
		id = parsed
	}

	var created time.Time
	if doc.CreatedAt != nil {
		created = *doc.CreatedAt
	}
	return records.Restore(id, doc.Title, images, created)
}
