// Package template defines the display template model and the decode step
// that turns loosely-typed request metadata into a typed template.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type tags the payload variant carried by a template.
type Type string

const (
	// TypeAudio is a now-playing media card.
	TypeAudio Type = "audio"
	// TypeText is a header/body text card.
	TypeText Type = "text"
	// TypeImage is an image card with caption text.
	TypeImage Type = "image"
)

// Decode errors.
var (
	ErrNilMetadata  = errors.New("metadata is nil")
	ErrMissingType  = errors.New("metadata has no type field")
	ErrUnknownType  = errors.New("unknown template type")
	ErrEmptyMessage = errors.New("message id cannot be empty")
	ErrEmptyDialog  = errors.New("dialog request id cannot be empty")
)

// Payload is the variant data carried by a template. It is opaque to the
// sync coordinator; render targets type-switch on the concrete variant.
type Payload interface {
	payloadType() Type
}

// AudioPayload describes a now-playing media card.
type AudioPayload struct {
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

func (AudioPayload) payloadType() Type { return TypeAudio }

// TextPayload describes a header/body card.
type TextPayload struct {
	Header string `json:"header"`
	Body   string `json:"body,omitempty"`
}

func (TextPayload) payloadType() Type { return TypeText }

// ImagePayload describes an image card.
type ImagePayload struct {
	Header      string `json:"header,omitempty"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description,omitempty"`
}

func (ImagePayload) payloadType() Type { return TypeImage }

// Template is one immutable unit of renderable content, tied to the request
// that triggered it. A new display request always produces a new Template.
type Template struct {
	// ID uniquely identifies the template. It equals the message id of the
	// triggering request.
	ID string

	// DialogRequestID groups the template with its synchronization session.
	DialogRequestID string

	// PlayServiceID optionally groups templates sharing a playback service.
	// Empty means no service grouping.
	PlayServiceID string

	// Type names the payload variant.
	Type Type

	// Payload is the variant data.
	Payload Payload
}

// DecodeError wraps a payload decode failure with the offending type tag.
type DecodeError struct {
	Type  Type
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %q template: %v", e.Type, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode builds a Template from loosely-typed request metadata. The metadata
// must carry a "type" field naming a known payload variant; the remaining
// fields are decoded into that variant's shape. Decode never panics across
// the boundary: every failure comes back as an error.
func Decode(meta map[string]any, messageID, dialogRequestID, playServiceID string) (*Template, error) {
	if meta == nil {
		return nil, ErrNilMetadata
	}
	if messageID == "" {
		return nil, ErrEmptyMessage
	}
	if dialogRequestID == "" {
		return nil, ErrEmptyDialog
	}

	rawType, ok := meta["type"].(string)
	if !ok || rawType == "" {
		return nil, ErrMissingType
	}
	typ := Type(rawType)

	payload, err := decodePayload(typ, meta)
	if err != nil {
		return nil, err
	}

	return &Template{
		ID:              messageID,
		DialogRequestID: dialogRequestID,
		PlayServiceID:   playServiceID,
		Type:            typ,
		Payload:         payload,
	}, nil
}

// decodePayload round-trips the metadata through JSON into the typed variant
// selected by typ.
func decodePayload(typ Type, meta map[string]any) (Payload, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, &DecodeError{Type: typ, Cause: err}
	}

	switch typ {
	case TypeAudio:
		var p AudioPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &DecodeError{Type: typ, Cause: err}
		}
		return p, nil
	case TypeText:
		var p TextPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &DecodeError{Type: typ, Cause: err}
		}
		return p, nil
	case TypeImage:
		var p ImagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &DecodeError{Type: typ, Cause: err}
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}
