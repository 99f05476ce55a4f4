package photo

import (
	"sync"

	"github.com/google/uuid"
)

const handlePrefix = "blob:"

// Transient is an in-process preview handle. It stays resolvable through the
// Previews registry that issued it until it is released.
type Transient struct {
	id        string
	mediaType string
	size      int
}

// Kind implements Representation.
func (t *Transient) Kind() Kind { return KindTransient }

func (t *Transient) isRepresentation() {}

// ID returns the handle identifier ("blob:<uuid>").
func (t *Transient) ID() string { return t.id }

// MediaType returns the media type of the wrapped bytes.
func (t *Transient) MediaType() string { return t.mediaType }

// Size returns the number of wrapped bytes.
func (t *Transient) Size() int { return t.size }

type previewEntry struct {
	mediaType string
	data      []byte
}

// Previews issues and tracks transient handles. A handle's bytes are held
// until Release; nothing is freed by finalizers.
type Previews struct {
	mu   sync.Mutex
	live map[string]previewEntry
}

// NewPreviews creates an empty registry.
func NewPreviews() *Previews {
	return &Previews{live: make(map[string]previewEntry)}
}

// Acquire wraps data in a new handle.
func (p *Previews) Acquire(mediaType string, data []byte) *Transient {
	t := &Transient{
		id:        handlePrefix + uuid.New().String(),
		mediaType: mediaType,
		size:      len(data),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[t.id] = previewEntry{mediaType: mediaType, data: data}
	return t
}

// AcquireDurable decodes d and wraps the bytes in a new handle.
func (p *Previews) AcquireDurable(d Durable) (*Transient, error) {
	mediaType, data, err := d.Decode()
	if err != nil {
		return nil, err
	}
	return p.Acquire(mediaType, data), nil
}

// Resolve returns the bytes behind a live handle.
func (p *Previews) Resolve(id string) (string, []byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.live[id]
	if !ok {
		return "", nil, false
	}
	return e.mediaType, e.data, true
}

// Release frees a handle. Releasing nil or an already released handle is a no-op.
func (p *Previews) Release(t *Transient) {
	if t == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, t.id)
}

// ReleaseAll frees every outstanding handle.
func (p *Previews) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = make(map[string]previewEntry)
}

// Live returns the number of outstanding handles.
func (p *Previews) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
