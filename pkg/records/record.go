// Package records owns the ordered collection of saved records.
package records

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/recordbook/pkg/photo"
)

// MaxImages is the most images a record may hold.
const MaxImages = 10

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("records: validation failed")

	// ErrIndex matches every *IndexError.
	ErrIndex = errors.New("records: index out of range")
)

// ValidationError reports why a record was refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("records: invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IndexError reports an index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("records: index %d out of range [0, %d)", e.Index, e.Len)
}

// Is makes errors.Is(err, ErrIndex) true.
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// CheckIndex returns an *IndexError unless 0 <= i < n.
func CheckIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}

// Record is a titled group of images. Records are immutable once created;
// accessors return copies.
type Record struct {
	ID        uuid.UUID
	Title     string
	Images    []photo.Durable
	CreatedAt time.Time
}

// Summary is the list-view projection of a record.
type Summary struct {
	Index      int
	Title      string
	ImageCount int
}

// Validate checks the title and image constraints shared by creation and load.
func Validate(title string, images []photo.Durable) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(images) == 0 {
		return &ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	if len(images) > MaxImages {
		return &ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d images allowed, got %d", MaxImages, len(images))}
	}
	for i, img := range images {
		if img.IsZero() {
			return &ValidationError{Field: "images", Reason: fmt.Sprintf("image %d is empty", i)}
		}
	}
	return nil
}

// Restore rebuilds a record from stored fields. A nil id is replaced with a
// fresh one and a zero time is kept as is.
func Restore(id uuid.UUID, title string, images []photo.Durable, createdAt time.Time) (Record, error) {
	if err := Validate(title, images); err != nil {
		return Record{}, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return Record{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Images:    append([]photo.Durable(nil), images...),
		CreatedAt: createdAt,
	}, nil
}

func (r Record) clone() Record {
	r.Images = append([]photo.Durable(nil), r.Images...)
	return r
}
