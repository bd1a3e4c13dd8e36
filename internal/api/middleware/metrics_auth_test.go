package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
)

func serveMetrics(t *testing.T, cfg config.MetricsConfig, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := MetricsBasicAuth(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "metrics")
	})
	return rec, handler(c)
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestMetricsBasicAuth(t *testing.T) {
	cfg := config.MetricsConfig{User: "testuser", Password: "testpass"}

	t.Run("認証設定がない場合はスキップ", func(t *testing.T) {
		rec, err := serveMetrics(t, config.MetricsConfig{}, "")

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "metrics", rec.Body.String())
	})

	t.Run("正しい認証情報", func(t *testing.T) {
		rec, err := serveMetrics(t, cfg, basic("testuser", "testpass"))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("間違った認証情報", func(t *testing.T) {
		_, err := serveMetrics(t, cfg, basic("wronguser", "wrongpass"))

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("Authorization ヘッダーなし", func(t *testing.T) {
		_, err := serveMetrics(t, cfg, "")

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}

func TestAdminBasicAuth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reconciliation", nil)
	req.Header.Set("Authorization", basic("ops", "wrong"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := AdminBasicAuth(config.AdminConfig{User: "ops", Password: "secret"})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}
