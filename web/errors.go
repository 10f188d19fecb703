package web

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/invencare/go-auth"
)

// ErrForbidden is rendered when the session role is below the route minimum.
var ErrForbidden = goerrors.New("you do not have access to this page", goerrors.CategoryAuthz).
	WithTextCode("ROUTE_FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code,omitempty"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

var categoryStatus = map[goerrors.Category]int{
	goerrors.CategoryValidation: http.StatusBadRequest,
	goerrors.CategoryBadInput:   http.StatusBadRequest,
	goerrors.CategoryAuth:       http.StatusUnauthorized,
	goerrors.CategoryAuthz:      http.StatusForbidden,
	goerrors.CategoryNotFound:   http.StatusNotFound,
	goerrors.CategoryConflict:   http.StatusConflict,
	goerrors.CategoryRateLimit:  http.StatusTooManyRequests,
	goerrors.CategoryExternal:   http.StatusBadGateway,
}

// StatusFor maps err to an HTTP status from its go-errors category.
func StatusFor(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}
	if status, ok := categoryStatus[richErr.Category]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ErrorBody {
	detail := ErrorDetail{Message: auth.ProviderMessage(err)}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		detail.TextCode = richErr.TextCode
		detail.Category = string(richErr.Category)
		detail.Metadata = richErr.Metadata
	}
	if StatusFor(err) == http.StatusInternalServerError {
		detail.Message = "an unexpected error occurred"
		detail.Metadata = nil
	}
	return ErrorBody{Error: detail}
}

func writeError(ctx router.Context, err error) error {
	return ctx.JSON(StatusFor(err), errorBody(err))
}
