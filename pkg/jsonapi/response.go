package jsonapi

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// fallback is written when a document cannot be encoded.
var fallback = []byte(`{"errors":[{"status":"500","code":"internal_error","title":"Internal Server Error"}]}`)

// WriteDocument encodes doc before writing any header, so an encoding
// failure still yields a well-formed 500.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	body, err := json.Marshal(doc)
	if err != nil {
		status, body = http.StatusInternalServerError, fallback
	}
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

func WriteResource(w http.ResponseWriter, status int, r Resource) {
	WriteDocument(w, status, NewSingleResourceDocument(r))
}

func WriteCollection(w http.ResponseWriter, status int, resources []Resource, meta Meta) {
	WriteDocument(w, status, NewCollectionDocument(resources, meta))
}

// WriteError writes errs with the status of the first one. A retry hint
// on the first error becomes a Retry-After header.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal("")}
	}
	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if secs, ok := errs[0].RetryAfter(); ok {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteDocument(w, status, NewErrorDocument(errs...))
}

func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, ErrBadRequest(detail))
}

func WriteUnauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, ErrUnauthorized(detail))
}

func WriteForbidden(w http.ResponseWriter, detail string) {
	WriteError(w, ErrForbidden(detail))
}

func WriteValidationError(w http.ResponseWriter, field, message string) {
	WriteError(w, ErrValidation(field, message))
}

func WriteInternalError(w http.ResponseWriter, detail string) {
	WriteError(w, ErrInternal(detail))
}
