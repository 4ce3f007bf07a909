package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/pkg/jsonapi"
)

// parseAuditFilter reads the audit query parameters.
func parseAuditFilter(r *http.Request) (audit.Filter, *jsonapi.Error) {
	q := r.URL.Query()
	var f audit.Filter

	if id := q.Get("identity_id"); id != "" {
		ident := identityOf(q.Get("identity_kind"), id)
		f.Identity = &ident
	}
	f.SessionID = q.Get("session_id")

	if v := q.Get("bypassed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e := jsonapi.ErrInvalidParameter("bypassed", "must be true or false")
			return f, &e
		}
		f.BypassedOnly = b
	}

	if o := audit.Outcome(q.Get("outcome")); o != "" {
		if !o.Valid() {
			e := jsonapi.ErrInvalidParameter("outcome", "must be processed, denied or bypassed")
			return f, &e
		}
		f.Outcome = o
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			e := jsonapi.ErrInvalidParameter("since", "must be an RFC 3339 timestamp")
			return f, &e
		}
		f.Since = t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			e := jsonapi.ErrInvalidParameter("limit", "must be a non-negative integer")
			return f, &e
		}
		f.Limit = n
	}
	return f, nil
}

// AuditLog handles GET /admin/audit.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	f, apiErr := parseAuditFilter(r)
	if apiErr != nil {
		jsonapi.WriteError(w, *apiErr)
		return
	}

	recs, err := h.admission.AuditLog(r.Context(), f)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(recs))
	for _, rec := range recs {
		resources = append(resources, auditResource(rec))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{
		"count": len(resources),
		"limit": f.EffectiveLimit(),
	})
}

// Settings handles GET /admin/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	cur := h.settings.Get(r.Context())
	res := jsonapi.NewResource(TypeSetting, "global")
	for k, v := range cur {
		res.Attr(k, v)
	}
	jsonapi.WriteResource(w, http.StatusOK, res.Build())
}

type enforcementAttributes struct {
	Enabled *bool `json:"enabled"`
}

// SetEnforcement handles PUT /admin/settings/enforcement.
func (h *Handler) SetEnforcement(w http.ResponseWriter, r *http.Request) {
	var attrs enforcementAttributes
	if err := jsonapi.DecodeResource(r.Body, TypeSetting, &attrs); err != nil {
		if errors.Is(err, jsonapi.ErrWrongType) {
			jsonapi.WriteError(w, jsonapi.ErrConflict(err.Error()))
		} else {
			jsonapi.WriteBadRequest(w, err.Error())
		}
		return
	}
	if attrs.Enabled == nil {
		jsonapi.WriteValidationError(w, "enabled", "enabled is required")
		return
	}

	admin := AdminFromContext(r.Context())
	if err := h.settings.SetEnforcement(r.Context(), *attrs.Enabled, admin); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	h.logger.Warn().
		Bool("enabled", *attrs.Enabled).
		Str("admin", admin).
		Msg("enforcement toggled")

	jsonapi.WriteResource(w, http.StatusOK, jsonapi.NewResource(TypeSetting, settings.KeyEnforcementEnabled).
		Attr("enabled", *attrs.Enabled).
		Attr("updated_by", admin).
		Build())
}
