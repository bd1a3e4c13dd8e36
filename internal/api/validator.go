package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はリクエストボディを検証する
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator はJSONタグ名でエラーを報告するバリデーターを作成する
// rfc3339 タグで開催日時などの文字列を検証できる
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})
	return &CustomValidator{validator: v}
}

// Validate は最初に違反したフィールドを400で返す
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s が不正です (%s)", fe.Field(), fe.Tag()))
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
