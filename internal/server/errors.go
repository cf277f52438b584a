package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns an HTTP error handler that renders every error,
// including 404s and middleware rejections, as an ErrorResponse.
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = http.StatusText(code)
			// Echo puts auth and binding failures in Message; surface the
			// string ones rather than the generic status text.
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
		}

		_ = c.JSON(code, ErrorResponse{Error: msg, Code: code})
	}
}
