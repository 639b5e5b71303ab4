package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/auth"
	"github.com/bloomfield/api/internal/platform/httpx"
	"github.com/bloomfield/api/internal/platform/pagination"
	"github.com/bloomfield/api/internal/services"
)

// maxBodyBytes caps request payload size before JSON decoding.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a size-limited JSON body into dst. Callers translate the
// returned error into an invalid_request response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeInvalidBody(ctx context.Context, w http.ResponseWriter, err error) {
	message := "request body must be valid JSON"
	if errors.Is(err, errEmptyBody) {
		message = "request body is required"
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

// requireIdentity extracts the authenticated identity placed in context by the
// auth middleware. Routes registered without that middleware never reach this.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// paginationFromQuery parses page and limit, applying the default of 20 and
// the cap of 100. Malformed values produce a 400 and a false return.
func paginationFromQuery(w http.ResponseWriter, r *http.Request) (domain.Pagination, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return domain.Pagination{}, false
	}
	return domain.Pagination{Page: params.Page, Limit: params.Limit}, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func parseTimePtr(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// pageEnvelope renders a result page with its pagination metadata.
func pageEnvelope[T any, P any](page domain.Page[T], build func(T) P) map[string]any {
	items := make([]P, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, build(item))
	}
	return map[string]any{
		"items":       items,
		"page":        page.Page,
		"limit":       page.Limit,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	}
}

type addressPayload struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		Street:  p.Street,
		City:    p.City,
		State:   p.State,
		Zip:     p.Zip,
		Country: p.Country,
	}
}

func buildAddressPayload(address domain.Address) addressPayload {
	return addressPayload{
		Street:  address.Street,
		City:    address.City,
		State:   address.State,
		Zip:     address.Zip,
		Country: address.Country,
	}
}

type cancellationPayload struct {
	By          string `json:"by"`
	Reason      string `json:"reason,omitempty"`
	CancelledAt string `json:"cancelled_at"`
}

func buildCancellationPayload(c *domain.Cancellation) *cancellationPayload {
	if c == nil {
		return nil
	}
	return &cancellationPayload{
		By:          string(c.By),
		Reason:      c.Reason,
		CancelledAt: formatTime(c.CancelledAt),
	}
}

// writeServiceError maps service failures for customer-facing routes. Access
// denied collapses to not found so resource existence is never leaked.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	writeMappedServiceError(ctx, w, err, false)
}

// writeAdminServiceError maps service failures for staff routes, where access
// denied stays distinguishable from missing resources.
func writeAdminServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	writeMappedServiceError(ctx, w, err, true)
}

func writeMappedServiceError(ctx context.Context, w http.ResponseWriter, err error, adminView bool) {
	var transition *services.InvalidTransitionError
	switch {
	case errors.As(err, &transition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", transition.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"current": transition.Current,
				"target":  transition.Target,
				"allowed": transition.Allowed,
			}))
	case errors.Is(err, services.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrAccessDenied):
		if adminView {
			httpx.WriteError(ctx, w, httpx.NewError("access_denied", "access denied", http.StatusForbidden))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("already_exists", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderCancelled):
		httpx.WriteError(ctx, w, httpx.NewError("order_cancelled", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrAlreadyCancelled):
		httpx.WriteError(ctx, w, httpx.NewError("already_cancelled", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCompletedDelivery):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_completed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrDeliveryFrozen):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_frozen", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
