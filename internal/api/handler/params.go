package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// eventIDParam はパスの :id をイベントIDとして読む
func eventIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "イベントIDが不正です")
	}
	return id, nil
}

// intQuery は整数のクエリパラメータを読む。未指定または不正なら def
func intQuery(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}
