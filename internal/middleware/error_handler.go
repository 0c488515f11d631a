package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"calcReco/business/recommendation"
	"calcReco/pkg/logger"
	jsonres "calcReco/pkg/response"

	"github.com/labstack/echo/v4"
)

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	}

	if code >= http.StatusInternalServerError {
		logger.Error("http_error",
			"trace_id", recommendation.TraceIDFromContext(c.Request().Context()),
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	var respErr error
	if c.Request().Method == http.MethodHead {
		respErr = c.NoContent(code)
	} else {
		respErr = c.JSON(code, jsonres.Error(http.StatusText(code), message, nil))
	}
	if respErr != nil {
		logger.Error("http_error_response_failed", "error", respErr)
	}
}
