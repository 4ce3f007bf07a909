package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxRequestBytes caps request documents read by DecodeResource.
const MaxRequestBytes = 1 << 20

// Request decoding errors.
var (
	ErrMalformedDocument = errors.New("malformed JSON:API document")
	ErrWrongType         = errors.New("unexpected resource type")
)

type requestDocument struct {
	Data *struct {
		Type       string          `json:"type"`
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

// DecodeResource reads a single-resource document from body and decodes its
// attributes into dst. The resource type must equal wantType.
func DecodeResource(body io.Reader, wantType string, dst any) error {
	var doc requestDocument
	dec := json.NewDecoder(io.LimitReader(body, MaxRequestBytes))
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Data == nil {
		return fmt.Errorf("%w: missing data", ErrMalformedDocument)
	}
	if doc.Data.Type != wantType {
		return fmt.Errorf("%w: got %q, want %q", ErrWrongType, doc.Data.Type, wantType)
	}
	if len(doc.Data.Attributes) == 0 {
		return fmt.Errorf("%w: missing attributes", ErrMalformedDocument)
	}
	if err := json.Unmarshal(doc.Data.Attributes, dst); err != nil {
		return fmt.Errorf("%w: attributes: %v", ErrMalformedDocument, err)
	}
	return nil
}
