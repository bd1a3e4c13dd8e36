package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
)

type testSigner string

func (s testSigner) Address() string { return string(s) }

const relayer = testSigner("0x00000000000000000000000000000000000000ff")

// NewTestEcho は本番と同じバリデーターとエラーハンドラーを持つEchoを返す
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// newRequest はテスト用のリクエストを作成する。body が空ならボディなし
func newRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// asUser は利用者ヘッダーを設定する
func asUser(req *http.Request, userID, wallet string) *http.Request {
	req.Header.Set(middleware.HeaderUserID, userID)
	req.Header.Set(middleware.HeaderWalletAddress, wallet)
	return req
}

// serve はパスパラメータを設定してハンドラーを実行し、エラーはエラーハンドラーで書き出す
// params は名前と値を交互に並べる
func serve(e *echo.Echo, h echo.HandlerFunc, req *http.Request, params ...string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := middleware.Identify()(h)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}
