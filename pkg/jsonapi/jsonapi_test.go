package jsonapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(422, "validation_error", "Validation Failed").
		Detailf("%s is required", "filename").
		Pointer("/data/attributes/filename").
		Meta("field", "filename").
		Build()

	if err.Status != "422" || err.StatusCode() != 422 {
		t.Errorf("Status = %s", err.Status)
	}
	if err.Detail != "filename is required" {
		t.Errorf("Detail = %s", err.Detail)
	}
	if err.Source == nil || err.Source.Pointer != "/data/attributes/filename" {
		t.Errorf("Source = %+v", err.Source)
	}
	if err.Meta["field"] != "filename" {
		t.Errorf("Meta = %v", err.Meta)
	}
}

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		err        Error
		wantStatus int
		wantCode   string
	}{
		{ErrBadRequest("x"), 400, "bad_request"},
		{ErrUnauthorized(""), 401, "unauthorized"},
		{ErrForbidden(""), 403, "forbidden"},
		{ErrNotFound(""), 404, "not_found"},
		{ErrNotFoundWithID("bundle", "b1"), 404, "not_found"},
		{ErrMethodNotAllowed("DELETE"), 405, "method_not_allowed"},
		{ErrConflict("type mismatch"), 409, "conflict"},
		{ErrValidation("operation", "bad"), 422, "validation_error"},
		{ErrInvalidParameter("operations", "must be a number"), 400, "invalid_parameter"},
		{ErrRateLimited(30), 429, "rate_limit_exceeded"},
		{ErrInternal(""), 500, "internal_error"},
		{ErrServiceUnavailable(""), 503, "service_unavailable"},
	}
	for _, tt := range tests {
		if tt.err.StatusCode() != tt.wantStatus || tt.err.Code != tt.wantCode {
			t.Errorf("%s: status %s code %s", tt.wantCode, tt.err.Status, tt.err.Code)
		}
		if tt.err.Detail == "" {
			t.Errorf("%s: empty detail", tt.wantCode)
		}
	}

	if ErrRateLimited(30).Meta["retry_after_seconds"] != 30 {
		t.Error("rate limit error must carry retry_after_seconds")
	}
	if ErrInvalidParameter("limit", "x").Source.Parameter != "limit" {
		t.Error("invalid parameter error must name the parameter")
	}
}

func TestWriteResource(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewResource("tiers", "free").
		Attr("name", "Free").
		Attrs(map[string]any{"id": "ignored", "rank": 1}).
		AttrIf(false, "hidden", true).
		Meta("metered", true).
		Link("/v1/tiers/free").
		Build()
	WriteResource(rec, http.StatusOK, r)

	if ct := rec.Header().Get("Content-Type"); ct != ContentType {
		t.Errorf("Content-Type = %s", ct)
	}

	var doc struct {
		Data Resource `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Data.Type != "tiers" || doc.Data.ID != "free" {
		t.Errorf("resource = %+v", doc.Data)
	}
	if _, ok := doc.Data.Attributes["id"]; ok {
		t.Error("id must not be an attribute")
	}
	if _, ok := doc.Data.Attributes["hidden"]; ok {
		t.Error("AttrIf(false) must not add the attribute")
	}
	if doc.Data.Links == nil || doc.Data.Links.Self != "/v1/tiers/free" {
		t.Errorf("links = %+v", doc.Data.Links)
	}
}

func TestWriteCollection_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCollection(rec, http.StatusOK, nil, Meta{"count": 0})

	body := rec.Body.String()
	if !strings.Contains(body, `"data":[]`) {
		t.Errorf("empty collection must encode as []: %s", body)
	}
	if !strings.Contains(body, `"count":0`) {
		t.Errorf("meta missing: %s", body)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrForbidden("nope"), ErrBadRequest("also"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	var doc Document
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if len(doc.Errors) != 2 || doc.Data != nil {
		t.Errorf("doc = %+v", doc)
	}

	rec = httptest.NewRecorder()
	WriteError(rec)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status without errors = %d, want 500", rec.Code)
	}
}

func TestWriteError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrRateLimited(42))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "42" {
		t.Errorf("status %d Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	rec = httptest.NewRecorder()
	WriteError(rec, ErrServiceUnavailable(""))
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}

	rec = httptest.NewRecorder()
	WriteError(rec, ErrBadRequest("x"))
	if rec.Header().Get("Retry-After") != "" {
		t.Error("client errors carry no retry hint")
	}
}

func TestWriteDocument_Unencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDocument(rec, http.StatusOK, Document{Meta: Meta{"bad": func() {}}})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatus_UnknownCode(t *testing.T) {
	e := Status(http.StatusTeapot).Build()
	if e.Code != "error" || e.Title != "I'm a teapot" {
		t.Errorf("error = %+v", e)
	}
}

func TestDocumentBuilder(t *testing.T) {
	doc := NewDocument().
		DataResource(NewResource("usage", "u1").Build()).
		Meta("a", 1).
		MetaAll(Meta{"b": 2}).
		Self("/v1/usage").
		JSONAPI().
		Build()

	if doc.Meta["a"] != 1 || doc.Meta["b"] != 2 {
		t.Errorf("meta = %v", doc.Meta)
	}
	if doc.Links.Self != "/v1/usage" || doc.JSONAPI.Version != Version {
		t.Errorf("doc = %+v", doc)
	}

	doc = NewDocument().DataResource(Resource{}).Errors(ErrInternal("")).Build()
	if doc.Data != nil {
		t.Error("Errors must clear Data")
	}
}

func TestDecodeResource(t *testing.T) {
	type attrs struct {
		Filename string `json:"filename"`
		Size     int64  `json:"file_size_bytes"`
	}

	var got attrs
	body := `{"data":{"type":"operations","attributes":{"filename":"a.jpg","file_size_bytes":42}}}`
	if err := DecodeResource(strings.NewReader(body), "operations", &got); err != nil {
		t.Fatalf("DecodeResource: %v", err)
	}
	if got.Filename != "a.jpg" || got.Size != 42 {
		t.Errorf("attrs = %+v", got)
	}

	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `{`, ErrMalformedDocument},
		{"no data", `{}`, ErrMalformedDocument},
		{"wrong type", `{"data":{"type":"users","attributes":{}}}`, ErrWrongType},
		{"no attributes", `{"data":{"type":"operations"}}`, ErrMalformedDocument},
		{"bad attributes", `{"data":{"type":"operations","attributes":{"file_size_bytes":"big"}}}`, ErrMalformedDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a attrs
			if err := DecodeResource(strings.NewReader(tt.body), "operations", &a); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
