// Package pending holds the images a user has added but not yet saved into
// a record.
package pending

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/entrhq/recordbook/pkg/photo"
)

// Capacity is the maximum number of pending images.
const Capacity = 10

// Policy decides which images survive when an append overflows Capacity.
type Policy int

const (
	// KeepOldest keeps the first Capacity images and drops the newest excess.
	KeepOldest Policy = iota
	// SlidingWindow keeps the last Capacity images and drops the oldest.
	SlidingWindow
)

func (p Policy) String() string {
	switch p {
	case KeepOldest:
		return "keep-oldest"
	case SlidingWindow:
		return "sliding-window"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a config value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "keep-oldest":
		return KeepOldest, nil
	case "sliding-window":
		return SlidingWindow, nil
	default:
		return KeepOldest, fmt.Errorf("unknown truncation policy %q", s)
	}
}

// Item is one pending image. Preview is nil when the buffer has no
// preview registry.
type Item struct {
	Image   photo.Durable
	Preview *photo.Transient
}

// Buffer is an ordered, bounded list of pending images.
type Buffer struct {
	mu       sync.Mutex
	items    []Item
	policy   Policy
	previews *photo.Previews
	closed   bool
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithPolicy sets the truncation policy.
func WithPolicy(p Policy) Option {
	return func(b *Buffer) { b.policy = p }
}

// WithPreviews makes the buffer acquire a transient preview per image and
// release it when the image leaves the buffer.
func WithPreviews(p *photo.Previews) Option {
	return func(b *Buffer) { b.previews = p }
}

// New creates an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{policy: KeepOldest}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the truncation policy.
func (b *Buffer) Policy() Policy {
	return b.policy
}

// Append adds images after the current ones and truncates to Capacity.
// It returns how many of the given images were kept. After Close, images are
// discarded.
func (b *Buffer) Append(images ...photo.Durable) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		slog.Debug("pending: discarding images appended after close", "count", len(images))
		return 0
	}

	prev := len(b.items)
	combined := make([]Item, 0, prev+len(images))
	combined = append(combined, b.items...)
	for _, img := range images {
		combined = append(combined, Item{Image: img})
	}

	lo, hi := 0, len(combined)
	if hi > Capacity {
		if b.policy == SlidingWindow {
			lo = hi - Capacity
		} else {
			hi = Capacity
		}
	}
	for _, it := range combined[:lo] {
		b.release(it)
	}
	for _, it := range combined[hi:] {
		b.release(it)
	}

	// previews are only acquired for images that actually entered the buffer
	added := 0
	for i := max(lo, prev); i < hi; i++ {
		added++
		if b.previews == nil {
			continue
		}
		t, err := b.previews.AcquireDurable(combined[i].Image)
		if err != nil {
			slog.Debug("pending: preview unavailable", "error", err)
			continue
		}
		combined[i].Preview = t
	}

	b.items = combined[lo:hi:hi]
	return added
}

func (b *Buffer) release(it Item) {
	if b.previews != nil && it.Preview != nil {
		b.previews.Release(it.Preview)
	}
}

// Clear discards every pending image.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *Buffer) clearLocked() {
	for _, it := range b.items {
		b.release(it)
	}
	b.items = nil
}

// Take returns the pending images and empties the buffer.
func (b *Buffer) Take() []photo.Durable {
	b.mu.Lock()
	defer b.mu.Unlock()

	images := imagesOf(b.items)
	b.clearLocked()
	return images
}

// Commit hands the pending images to fn while the buffer is held, so no
// append can land between reading and clearing them. The buffer is emptied
// when fn returns nil and left untouched otherwise.
func (b *Buffer) Commit(fn func(images []photo.Durable) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := fn(imagesOf(b.items)); err != nil {
		return err
	}
	b.clearLocked()
	return nil
}

// Remove discards the image at index i.
func (b *Buffer) Remove(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= len(b.items) {
		return fmt.Errorf("pending: index %d out of range [0, %d)", i, len(b.items))
	}
	b.release(b.items[i])
	b.items = append(b.items[:i:i], b.items[i+1:]...)
	return nil
}

// Len returns the number of pending images.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the pending items.
func (b *Buffer) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Item(nil), b.items...)
}

// Images returns a copy of the pending images.
func (b *Buffer) Images() []photo.Durable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return imagesOf(b.items)
}

// Close releases every preview. Later appends are discarded.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	b.closed = true
}

func imagesOf(items []Item) []photo.Durable {
	if len(items) == 0 {
		return nil
	}
	out := make([]photo.Durable, len(items))
	for i, it := range items {
		out[i] = it.Image
	}
	return out
}
