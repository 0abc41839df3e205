package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/logger"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// codeForStatus maps statuses produced by echo itself (routing, binding)
// onto the shared error codes.
var codeForStatus = map[int]apperr.Code{
	http.StatusBadRequest:            apperr.CodeValidation,
	http.StatusUnauthorized:          apperr.CodeUnauthorized,
	http.StatusForbidden:             apperr.CodeForbidden,
	http.StatusNotFound:              apperr.CodeNotFound,
	http.StatusMethodNotAllowed:      apperr.CodeNotFound,
	http.StatusConflict:              apperr.CodeConflict,
	http.StatusUnsupportedMediaType:  apperr.CodeValidation,
	http.StatusRequestEntityTooLarge: apperr.CodeValidation,
	http.StatusTooManyRequests:       apperr.CodeRateLimit,
}

// ErrorHandler renders every error as {"error":{"code","message","details"}}.
// Internal errors are logged with their cause and shown with a generic
// message only.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := renderError(err)
		if status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "request failed", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorResponse{Error: body})
		}
		if werr != nil {
			log.Warn(c.Request().Context(), "writing error response", werr)
		}
	}
}

func renderError(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) && apperr.As(err) == nil {
		code, ok := codeForStatus[he.Code]
		if !ok {
			code = apperr.CodeInternal
		}
		if he.Code >= http.StatusInternalServerError {
			return he.Code, errorBody{Code: code, Message: apperr.MetadataFor(code).PublicMessage}
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, errorBody{Code: code, Message: msg}
	}

	typed := apperr.As(err)
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)
	body := errorBody{Code: code, Message: meta.PublicMessage}
	if typed != nil && meta.ShowMessage && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if typed != nil && code != apperr.CodeInternal {
		body.Details = typed.Details()
	}
	return meta.HTTPStatus, body
}
