package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// PendingRecordResponse はミント済みで記録が遅延している購入のレスポンス
type PendingRecordResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PendingRecordMessage はミント済みで記録が遅延している場合の利用者向けメッセージ
const PendingRecordMessage = "チケットはミント済みですが記録が遅延しています"

// StatusFor はアプリケーションエラーの分類からHTTPステータスを決める
func StatusFor(kind application.Kind) int {
	switch kind {
	case application.KindValidation:
		return http.StatusBadRequest
	case application.KindUnauthenticated:
		return http.StatusUnauthorized
	case application.KindForbidden:
		return http.StatusForbidden
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindEligibility, application.KindNotEligible:
		return http.StatusUnprocessableEntity
	case application.KindAlreadyListed, application.KindConflict:
		return http.StatusConflict
	case application.KindMintFailed:
		return http.StatusBadGateway
	case application.KindCommitInconsistency:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
		kind    string
	)

	var he *echo.HTTPError
	var appErr *application.Error
	switch {
	case errors.As(err, &appErr):
		if appErr.Kind == application.KindCommitInconsistency {
			// ミントは取り消せないため失敗としては返さない
			logger.Warn("ミント済みで記録が遅延",
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
			)
			if err := c.JSON(http.StatusAccepted, PendingRecordResponse{
				Status:  "pending_record",
				Message: PendingRecordMessage,
			}); err != nil {
				logger.Error("エラーレスポンス送信失敗", zap.Error(err))
			}
			return
		}
		code = StatusFor(appErr.Kind)
		kind = string(appErr.Kind)
		if code < 500 {
			message = appErr.Error()
		}
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
		Kind:  kind,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
