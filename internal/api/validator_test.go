package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedRequest struct {
	Name string `json:"name" validate:"required"`
	Date string `json:"date" validate:"required,rfc3339"`
	Max  int    `json:"max_tickets" validate:"gt=0"`
}

func TestCustomValidator_Validate(t *testing.T) {
	v := NewValidator()

	t.Run("正しいリクエストは通る", func(t *testing.T) {
		err := v.Validate(&validatedRequest{Name: "x", Date: "2026-12-31T18:00:00+09:00", Max: 1})
		assert.NoError(t, err)
	})

	tests := []struct {
		name  string
		req   validatedRequest
		field string
	}{
		{"名前なし", validatedRequest{Date: "2026-12-31T18:00:00Z", Max: 1}, "name"},
		{"日時がRFC3339でない", validatedRequest{Name: "x", Date: "2026/12/31", Max: 1}, "date"},
		{"販売数0", validatedRequest{Name: "x", Date: "2026-12-31T18:00:00Z"}, "max_tickets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			var he *echo.HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Contains(t, he.Message, tt.field)
		})
	}
}
