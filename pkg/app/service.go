// Package app wires the record store, pending buffer, view selector and
// persistence gateway together and applies the error policy the user
// interfaces rely on.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/entrhq/recordbook/pkg/kv"
	"github.com/entrhq/recordbook/pkg/logging"
	"github.com/entrhq/recordbook/pkg/pending"
	"github.com/entrhq/recordbook/pkg/persistence"
	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/records"
	"github.com/entrhq/recordbook/pkg/view"
)

// WarningFunc receives non-fatal problems: a collection that could not be
// loaded or a save that did not reach the store.
type WarningFunc func(message string, err error)

// Options configures a Service.
type Options struct {
	// StorageKey is the key the collection is stored under.
	StorageKey string

	// Debug makes index errors panic instead of being logged and ignored.
	Debug bool

	Policy  pending.Policy
	Encoder photo.Encoder
	Accept  *photo.AcceptFilter
	Logger  *logging.Logger

	// OnWarning is called synchronously; it must not block.
	OnWarning WarningFunc

	// StoreOptions are passed to the record store.
	StoreOptions []records.Option
}

// Service is the entry point for user interfaces.
type Service struct {
	kv       kv.Store
	gateway  *persistence.Gateway
	store    *records.Store
	buffer   *pending.Buffer
	previews *photo.Previews
	selector *view.Selector
	encoder  photo.Encoder
	accept   *photo.AcceptFilter
	log      *logging.Logger
	debug    bool
	warn     WarningFunc
}

// Open loads the collection from store and returns a ready service. A
// collection that cannot be loaded is reported through OnWarning and the
// service starts empty.
func Open(ctx context.Context, store kv.Store, opts Options) *Service {
	s := &Service{
		kv:       store,
		gateway:  persistence.NewGateway(store, opts.StorageKey),
		previews: photo.NewPreviews(),
		selector: view.NewSelector(),
		encoder:  opts.Encoder,
		accept:   opts.Accept,
		log:      opts.Logger,
		debug:    opts.Debug,
		warn:     opts.OnWarning,
	}
	if s.encoder == nil {
		s.encoder = photo.NewDataURLEncoder()
	}
	if s.accept == nil {
		s.accept = photo.DefaultAcceptFilter()
	}
	if s.log == nil {
		s.log = logging.NewWriterLogger("app", io.Discard)
	}

	s.buffer = pending.New(pending.WithPolicy(opts.Policy), pending.WithPreviews(s.previews))
	s.store = records.NewStore(s.gateway, opts.StoreOptions...)
	s.selector.Attach(s.store)

	collection, err := s.gateway.Load(ctx)
	switch {
	case err == nil:
		s.store.Replace(collection)
		s.log.Infof("loaded %d records from key %q", len(collection), s.gateway.Key())
	case errors.Is(err, persistence.ErrCorruptState):
		s.warning("stored records are corrupt, starting with an empty collection", err)
	default:
		s.warning("could not load records, starting with an empty collection", err)
	}
	return s
}

func (s *Service) warning(message string, err error) {
	s.log.Warnf("%s: %v", message, err)
	if s.warn != nil {
		s.warn(message, err)
	}
}

// indexError applies the index policy: panic in debug builds, otherwise log
// and treat the call as a no-op.
func (s *Service) indexError(op string, err error) error {
	if s.debug {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	s.log.Errorf("%s ignored: %v", op, err)
	return nil
}

// AddImages encodes sources as one batch and appends the results to the
// pending buffer. It returns how many images were kept. On failure the
// buffer is unchanged.
func (s *Service) AddImages(ctx context.Context, sources []photo.Source) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	images, err := photo.EncodeBatch(ctx, s.encoder, sources)
	if err != nil {
		s.log.Warnf("dropped batch of %d images: %v", len(sources), err)
		return 0, err
	}
	kept := s.buffer.Append(images...)
	s.log.Debugf("encoded %d images, kept %d, pending %d", len(images), kept, s.buffer.Len())
	return kept, nil
}

// AddPaths expands paths through the accept filter and adds the matching
// files as one batch.
func (s *Service) AddPaths(ctx context.Context, paths []string) (int, error) {
	files, err := s.accept.ExpandPaths(paths, pending.Capacity)
	if err != nil {
		return 0, err
	}
	sources := make([]photo.Source, len(files))
	for i, f := range files {
		sources[i] = photo.FileSource(f)
	}
	return s.AddImages(ctx, sources)
}

// Save creates a record from title and the pending images. Batches that
// finish while the record is written stay pending. Validation
// errors are returned and leave everything untouched. If only persisting
// fails, the record is kept in memory, a warning is emitted and the call
// succeeds.
func (s *Service) Save(ctx context.Context, title string) (int, error) {
	var (
		index   int
		saveErr error
	)
	err := s.buffer.Commit(func(images []photo.Durable) error {
		var err error
		index, err = s.store.Create(ctx, title, images)
		if errors.Is(err, records.ErrValidation) {
			return err
		}
		saveErr = err
		return nil
	})
	if err != nil {
		return -1, err
	}
	if saveErr != nil {
		s.warning("record saved in memory only", saveErr)
	}
	s.log.Infof("created record %d with title %q", index, title)
	return index, nil
}

// Delete removes the record at index.
func (s *Service) Delete(ctx context.Context, index int) error {
	err := s.store.Delete(ctx, index)
	switch {
	case err == nil:
		s.log.Infof("deleted record %d", index)
		return nil
	case errors.Is(err, records.ErrIndex):
		return s.indexError("delete", err)
	default:
		s.warning("record deleted in memory only", err)
		return nil
	}
}

// Select shows the record at index.
func (s *Service) Select(index int) error {
	if err := s.selector.Select(index, s.store.Len()); err != nil {
		return s.indexError("select", err)
	}
	return nil
}

// Back returns to the record list.
func (s *Service) Back() {
	s.selector.Back()
}

// View returns the current view state.
func (s *Service) View() view.State {
	return s.selector.State()
}

// Current returns the record being viewed, if any.
func (s *Service) Current() (records.Record, bool) {
	i, ok := s.selector.Current()
	if !ok {
		return records.Record{}, false
	}
	rec, err := s.store.Get(i)
	if err != nil {
		return records.Record{}, false
	}
	return rec, true
}

// Record returns the record at index. An invalid index follows the index
// policy and reports false.
func (s *Service) Record(index int) (records.Record, bool) {
	rec, err := s.store.Get(index)
	if err != nil {
		_ = s.indexError("get", err)
		return records.Record{}, false
	}
	return rec, true
}

// List returns the record summaries in display order.
func (s *Service) List() []records.Summary {
	return s.store.List()
}

// Len returns the number of records.
func (s *Service) Len() int {
	return s.store.Len()
}

// Pending returns the pending images with their previews.
func (s *Service) Pending() []pending.Item {
	return s.buffer.Items()
}

// RemovePending drops one pending image.
func (s *Service) RemovePending(index int) error {
	if err := s.buffer.Remove(index); err != nil {
		return s.indexError("remove pending", &records.IndexError{Index: index, Len: s.buffer.Len()})
	}
	return nil
}

// ClearPending drops every pending image.
func (s *Service) ClearPending() {
	s.buffer.Clear()
}

// Previews exposes the preview registry so interfaces can resolve handles.
func (s *Service) Previews() *photo.Previews {
	return s.previews
}

// Document returns the stored JSON document, or nil if nothing is stored.
func (s *Service) Document(ctx context.Context) ([]byte, error) {
	return s.gateway.Raw(ctx)
}

// Close releases previews and the backing store.
func (s *Service) Close() error {
	s.buffer.Close()
	s.previews.ReleaseAll()
	return s.kv.Close()
}
