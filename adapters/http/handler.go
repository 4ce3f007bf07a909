package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/app"
	"github.com/applelectricals/microjpeg/domain/admission"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/pricing"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/pkg/jsonapi"
	"github.com/applelectricals/microjpeg/ports"
)

// Resource types accepted in request documents.
const (
	TypeAdmissionRequest = "admission-requests"
	TypeOperation        = "operations"
	TypeSetting          = "settings"
)

// Handler serves the public and admin API.
type Handler struct {
	admission *app.AdmissionService
	pricing   *app.PricingService
	settings  *app.SettingsService
	rates     *app.RateGate
	auth      *AdminAuth
	clock     ports.Clock
	ids       ports.IDGenerator
	logger    zerolog.Logger
}

// HandlerDeps contains dependencies for Handler.
type HandlerDeps struct {
	Admission *app.AdmissionService
	Pricing   *app.PricingService
	Settings  *app.SettingsService
	Rates     *app.RateGate // Optional; nil disables hourly ceilings
	Auth      *AdminAuth
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		admission: deps.Admission,
		pricing:   deps.Pricing,
		settings:  deps.Settings,
		rates:     deps.Rates,
		auth:      deps.Auth,
		clock:     deps.Clock,
		ids:       deps.IDGen,
		logger:    deps.Logger,
	}
}

type overrideAttributes struct {
	SuperBypass bool   `json:"super_bypass"`
	Reason      string `json:"reason"`
}

type operationAttributes struct {
	IdentityKind  string              `json:"identity_kind"`
	IdentityID    string              `json:"identity_id"`
	SessionID     string              `json:"session_id"`
	Plan          string              `json:"plan"`
	Operation     string              `json:"operation"`
	Filename      string              `json:"filename"`
	FileSizeBytes int64               `json:"file_size_bytes"`
	PageContext   string              `json:"page_context"`
	Override      *overrideAttributes `json:"override"`
}

func identityOf(kind, id string) ledger.Identity {
	if kind == "" {
		kind = string(ledger.KindUser)
	}
	return ledger.Identity{Kind: ledger.IdentityKind(kind), ID: id}
}

// decodeOperation reads an operation document and authenticates any
// override it carries. It writes the error response and returns false on
// failure.
func (h *Handler) decodeOperation(w http.ResponseWriter, r *http.Request, resourceType string) (app.OperationInput, bool) {
	var attrs operationAttributes
	if err := jsonapi.DecodeResource(r.Body, resourceType, &attrs); err != nil {
		if errors.Is(err, jsonapi.ErrWrongType) {
			jsonapi.WriteError(w, jsonapi.ErrConflict(err.Error()))
		} else {
			jsonapi.WriteBadRequest(w, err.Error())
		}
		return app.OperationInput{}, false
	}

	in := app.OperationInput{
		Identity:      identityOf(attrs.IdentityKind, attrs.IdentityID),
		SessionID:     attrs.SessionID,
		PlanLabel:     attrs.Plan,
		Operation:     admission.Operation(attrs.Operation),
		Filename:      attrs.Filename,
		FileSizeBytes: attrs.FileSizeBytes,
		PageContext:   attrs.PageContext,
	}

	if attrs.Override != nil && attrs.Override.SuperBypass {
		name, ok := h.auth.Authenticate(r)
		if !ok {
			jsonapi.WriteForbidden(w, "Overrides require an administrator token")
			return app.OperationInput{}, false
		}
		in.Override = &admission.Override{
			SuperBypass:   true,
			Reason:        attrs.Override.Reason,
			Administrator: name,
		}
	}
	return in, true
}

// writeAppError maps service errors to JSON:API errors.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrIdentityMissing):
		jsonapi.WriteValidationError(w, "identity_id", err.Error())
	case errors.Is(err, app.ErrInvalidRequest):
		jsonapi.WriteError(w, jsonapi.NewError(422, "validation_error", "Validation Failed").Detail(err.Error()).Build())
	case errors.Is(err, admission.ErrStorageUnavailable):
		h.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("usage storage unavailable")
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable(admission.ReasonServiceUnavailable.Message()))
	default:
		h.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		jsonapi.WriteInternalError(w, "")
	}
}

// allowRate applies the hourly ceiling. It writes a 429 and returns false
// when the caller is over it.
func (h *Handler) allowRate(w http.ResponseWriter, r *http.Request, in app.OperationInput) bool {
	if h.rates == nil || in.Override != nil || in.Identity.ID == "" {
		return true
	}
	ctx := r.Context()
	if !h.settings.Get(ctx).GetBool(settings.KeyRateLimitEnabled) {
		return true
	}

	t := h.admission.ResolveTier(in.Identity, in.PlanLabel)
	res := h.rates.Allow(ctx, in.Identity, t)
	if res.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
	}
	if res.Allowed {
		return true
	}

	secs := retrySeconds(ratelimit.RetryAfter(res, h.clock.Now()))
	jsonapi.WriteError(w, jsonapi.ErrRateLimited(secs))
	return false
}

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CheckAdmission handles POST /v1/admission.
func (h *Handler) CheckAdmission(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeOperation(w, r, TypeAdmissionRequest)
	if !ok {
		return
	}
	if !h.allowRate(w, r, in) {
		return
	}

	d, err := h.admission.CheckAdmission(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, decisionResource(h.ids.New(), d))
}

// RecordOperation handles POST /v1/operations.
func (h *Handler) RecordOperation(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeOperation(w, r, TypeOperation)
	if !ok {
		return
	}

	res, err := h.admission.RecordOperation(r.Context(), in)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	id := res.AuditID
	if id == "" {
		id = h.ids.New()
	}
	jsonapi.WriteResource(w, http.StatusCreated, recordResource(id, res))
}

// Usage handles GET /v1/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idValue := q.Get("identity_id")
	if idValue == "" {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("identity_id", "required"))
		return
	}
	id := identityOf(q.Get("identity_kind"), idValue)
	if id.Kind != ledger.KindUser && id.Kind != ledger.KindAnonymous {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("identity_kind", "must be user or anonymous"))
		return
	}

	u, err := h.admission.Usage(r.Context(), id, q.Get("session_id"), q.Get("plan"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, usageResource(u))
}

// Tiers handles GET /v1/tiers.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.admission.Catalog().Tiers()
	resources := make([]jsonapi.Resource, 0, len(tiers))
	for _, t := range tiers {
		resources = append(resources, tierResource(t))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{"count": len(resources)})
}

// Cost handles GET /v1/pricing/cost?operations=N.
func (h *Handler) Cost(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("operations")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("operations", "must be an integer"))
		return
	}

	cost, err := h.pricing.PreviewCost(n)
	if errors.Is(err, pricing.ErrNegativeCount) || errors.Is(err, pricing.ErrCountTooLarge) {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("operations", err.Error()))
		return
	}
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, costResource(h.pricing.Schedule().Currency, cost))
}

// Bundles handles GET /v1/pricing/bundles.
func (h *Handler) Bundles(w http.ResponseWriter, r *http.Request) {
	currency := h.pricing.Schedule().Currency
	bundles := h.pricing.Bundles()
	resources := make([]jsonapi.Resource, 0, len(bundles))
	for _, b := range bundles {
		resources = append(resources, bundleResource(currency, b))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{"count": len(resources)})
}

// Savings handles GET /v1/pricing/bundles/{id}/savings.
func (h *Handler) Savings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.pricing.PreviewPrepaidSavings(id)
	if errors.Is(err, pricing.ErrUnknownBundle) {
		jsonapi.WriteError(w, jsonapi.ErrNotFoundWithID("bundle", id))
		return
	}
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, savingsResource(h.pricing.Schedule().Currency, s))
}

func jsonapi404(w http.ResponseWriter, path string) {
	jsonapi.WriteError(w, jsonapi.ErrNotFound("No route for "+path))
}

func jsonapi405(w http.ResponseWriter, method string) {
	jsonapi.WriteError(w, jsonapi.ErrMethodNotAllowed(method))
}
