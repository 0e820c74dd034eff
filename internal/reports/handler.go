package reports

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/spa-booking/internal/bookings"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// Handler serves admin reports.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("reports: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Bookings handles GET /admin/reports/bookings?from=&to=.
func (h *Handler) Bookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.store.BookingSummary(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		bookings.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(summary)
}
