package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/correspondence-backend/internal/platform/apierr"
	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr renders err using its apierr status when present, otherwise
// maps the domain sentinels and falls back to a 500 with fallbackCode.
func RespondErr(c *gin.Context, err error, fallbackCode string) {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
	case errors.Is(err, domainerr.ErrNotFound):
		ae = apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, domainerr.ErrInvalidArgument):
		ae = apierr.New(http.StatusBadRequest, "invalid_request", err)
	default:
		ae = apierr.From(err, fallbackCode)
	}
	RespondError(c, ae.Status, ae.Code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
