// Package photo converts raw image input into representations the rest of
// recordbook can hold on to.
//
// Two representations exist. A Durable is a self-contained data URL that can
// be persisted and reloaded without the original bytes. A Transient is an
// in-process preview handle that is only valid until it is released. Only
// Durable values are accepted by the persistence path.
package photo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	dataURLPrefix = "data:"
	base64Marker  = ";base64,"
)

// ErrInvalidDurable is returned when a string is not a valid durable image representation.
var ErrInvalidDurable = errors.New("photo: invalid durable representation")

// Kind identifies which representation strategy produced a value.
type Kind int

const (
	// KindDurable is a self-contained encoded string, safe to persist.
	KindDurable Kind = iota
	// KindTransient is an in-process handle that must be released.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindDurable:
		return "durable"
	case KindTransient:
		return "transient"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Representation is the tagged variant over Durable and *Transient.
// It is sealed: no type outside this package can implement it.
type Representation interface {
	Kind() Kind
	isRepresentation()
}

// Durable is a base64 data URL ("data:<media type>;base64,<payload>").
// The zero value is not valid; build one with an Encoder or ParseDurable.
type Durable struct {
	url       string
	mediaType string
}

// ParseDurable validates s and returns it as a Durable.
func ParseDurable(s string) (Durable, error) {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return Durable{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidDurable, dataURLPrefix)
	}
	idx := strings.Index(s, base64Marker)
	if idx < 0 {
		return Durable{}, fmt.Errorf("%w: not base64 encoded", ErrInvalidDurable)
	}
	mediaType := s[len(dataURLPrefix):idx]
	if mediaType == "" {
		return Durable{}, fmt.Errorf("%w: empty media type", ErrInvalidDurable)
	}
	payload := s[idx+len(base64Marker):]
	if payload == "" {
		return Durable{}, fmt.Errorf("%w: empty payload", ErrInvalidDurable)
	}
	// the decoder skips line breaks, which would throw off Size
	if strings.ContainsAny(payload, " \t\r\n") {
		return Durable{}, fmt.Errorf("%w: whitespace in payload", ErrInvalidDurable)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return Durable{}, fmt.Errorf("%w: %v", ErrInvalidDurable, err)
	}
	return Durable{url: s, mediaType: mediaType}, nil
}

func newDurable(mediaType string, data []byte) Durable {
	url := dataURLPrefix + mediaType + base64Marker + base64.StdEncoding.EncodeToString(data)
	return Durable{url: url, mediaType: mediaType}
}

// Kind implements Representation.
func (d Durable) Kind() Kind { return KindDurable }

func (d Durable) isRepresentation() {}

// String returns the data URL.
func (d Durable) String() string { return d.url }

// IsZero reports whether d was never initialised.
func (d Durable) IsZero() bool { return d.url == "" }

// MediaType returns the media type recorded in the data URL.
func (d Durable) MediaType() string { return d.mediaType }

// Size returns the decoded payload size in bytes.
func (d Durable) Size() int {
	idx := strings.Index(d.url, base64Marker)
	if idx < 0 {
		return 0
	}
	return base64.StdEncoding.DecodedLen(len(d.url)-idx-len(base64Marker)) - padding(d.url)
}

// Decode returns the media type and the original bytes.
func (d Durable) Decode() (string, []byte, error) {
	if d.IsZero() {
		return "", nil, fmt.Errorf("%w: zero value", ErrInvalidDurable)
	}
	idx := strings.Index(d.url, base64Marker)
	data, err := base64.StdEncoding.DecodeString(d.url[idx+len(base64Marker):])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDurable, err)
	}
	return d.mediaType, data, nil
}

func padding(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '='; i-- {
		n++
	}
	return n
}
