package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

const testCatalog = `[{"serviceId":"facial-45","name":"Hydrating Facial","durationMinutes":45,"price":400000,"discountedPrice":350000}]`

func buildTestApp(t *testing.T, cfg *appconfig.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, Deps{Logger: logging.New("error"), Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestBuildInMemoryApp(t *testing.T) {
	mr := miniredis.RunT(t)
	app := buildTestApp(t, &appconfig.Config{
		Env:                "development",
		RedisAddr:          mr.Addr(),
		ServiceCatalogJSON: testCatalog,
		BookingCurrency:    "VND",
		AllowFakePayments:  true,
		PublicBaseURL:      "https://spa.example",
		WebhookRateLimit:   5,
		WebhookRateBurst:   5,
	})

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Checks["redis"])

	body, _ := json.Marshal(map[string]string{
		"username":      "linh",
		"customerName":  "Linh Tran",
		"customerPhone": "0900000000",
		"serviceId":     "facial-45",
		"bookingDate":   "2024-06-01",
		"startTime":     "10:00",
		"staffId":       "alice",
	})
	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		TotalPrice int64  `json:"totalPrice"`
		EndTime    string `json:"endTime"`
		Currency   string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(350000), created.TotalPrice)
	assert.Equal(t, "10:45", created.EndTime)
	assert.Equal(t, "VND", created.Currency)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/fake/123456", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "fake page mounted but unknown order")

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spa_bookings_created_total")
}

func TestBuildRejectsBadCatalog(t *testing.T) {
	_, err := Build(context.Background(), &appconfig.Config{ServiceCatalogJSON: "{"}, Deps{Logger: logging.New("error")})
	require.Error(t, err)
}

func TestBuildFailsWithoutProductionGateway(t *testing.T) {
	_, err := Build(context.Background(), &appconfig.Config{Env: "production"}, Deps{Logger: logging.New("error")})
	require.ErrorIs(t, err, ErrGatewayNotConfigured)
}

func TestHistoryURL(t *testing.T) {
	assert.Equal(t, "", historyURL(" "))
	assert.Equal(t, "https://spa.example/bookings/me", historyURL("https://spa.example/"))
}
