package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// Handler exposes the booking service over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the booking endpoints. Admin-only routes are registered by the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/me", h.ListMine)
	r.Get("/booked-slots", h.BookedSlots)
	r.Get("/customer/{username}", h.ListByCustomer)
	r.Get("/staff/{staffID}", h.ListByStaff)
	r.Get("/{bookingID}", h.Get)
	r.Put("/{bookingID}/status", h.UpdateStatus)
	r.Put("/{bookingID}/staff", h.AssignStaff)
	r.Patch("/{bookingID}/notes", h.UpdateNotes)
	r.Post("/{bookingID}/review", h.Review)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	b, err := h.service.Create(r.Context(), identity.ActorFromContext(r.Context()), req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())
	if actor.Role == identity.RoleAnonymous {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	h.listByCustomer(w, r, actor.Subject)
}

func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	h.listByCustomer(w, r, chi.URLParam(r, "username"))
}

func (h *Handler) listByCustomer(w http.ResponseWriter, r *http.Request, username string) {
	list, err := h.service.ListByCustomer(r.Context(), username)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) ListByStaff(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByStaff(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slots, err := h.service.BookedSlots(r.Context(), q.Get("staff"), q.Get("date"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

type statusRequest struct {
	Status   string `json:"status"`
	Event    string `json:"event"`
	StaffID  string `json:"staffId"`
	Override bool   `json:"override"`
}

// UpdateStatus accepts either a target status or an event name, plus an optional
// staff assignment. Both are checked before either is written.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	actor := identity.ActorFromContext(ctx)
	bookingID := chi.URLParam(r, "bookingID")

	raw := req.Event
	if raw == "" {
		raw = req.Status
	}
	hasStaff := strings.TrimSpace(req.StaffID) != ""
	if strings.TrimSpace(raw) == "" {
		if !hasStaff {
			WriteError(w, h.logger, &ValidationError{Field: "status", Reason: "is required"})
			return
		}
		b, err := h.service.AssignStaff(ctx, actor, bookingID, req.StaffID)
		if err != nil {
			WriteError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	ev, ok := ParseEvent(raw)
	if !ok {
		WriteError(w, h.logger, &ValidationError{Field: "status", Reason: "is not a known status or event"})
		return
	}
	opts := TransitionOptions{Override: req.Override}
	var (
		b   *Booking
		err error
	)
	if hasStaff {
		b, err = h.service.AssignAndTransition(ctx, actor, bookingID, req.StaffID, ev, opts)
	} else {
		b, err = h.service.Transition(ctx, actor, bookingID, ev, opts)
	}
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) AssignStaff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StaffID string `json:"staffId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	b, err := h.service.AssignStaff(r.Context(), identity.ActorFromContext(r.Context()), chi.URLParam(r, "bookingID"), req.StaffID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var patch NotesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	b, err := h.service.UpdateNotes(r.Context(), identity.ActorFromContext(r.Context()), chi.URLParam(r, "bookingID"), patch)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	var review Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	b, err := h.service.Review(r.Context(), identity.ActorFromContext(r.Context()), chi.URLParam(r, "bookingID"), review)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), identity.ActorFromContext(r.Context()), chi.URLParam(r, "bookingID")); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps booking errors onto HTTP statuses. Unknown errors are logged and hidden.
func WriteError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var (
		ve *ValidationError
		ce *ConflictError
		te *TransitionError
		pe *PreconditionError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "field": ve.Field})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"staffId":     ce.StaffID,
			"bookingDate": ce.Existing.BookingDate,
			"startTime":   ce.Existing.StartTime.String(),
			"endTime":     ce.Existing.EndTime.String(),
		})
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           err.Error(),
			"currentStatus":   te.From,
			"requestedStatus": te.Requested(),
			"event":           te.Event,
		})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "event": pe.Event})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		if logger == nil {
			logger = logging.Default()
		}
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func nonNil(list []*Booking) []*Booking {
	if list == nil {
		return []*Booking{}
	}
	return list
}
