package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"workspace-api/domain"
)

const (
	msgUnauthorized  = "Unauthorized"
	msgInternalError = "Internal server error"
)

// guardedHandler runs after the session has been resolved. It returns domain
// errors unwritten; the guard maps them to responses.
type guardedHandler func(c echo.Context, userID string, m *requestMetrics) error

// guard resolves the calling user before fn runs. Requests without a valid
// session get a 401 and never reach a service.
func guard(auth Authenticator, logger *log.Logger, rt route) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, ctx := newRequestMetrics(c.Request().Context(), logger, rt.path, rt.op)
		c.SetRequest(c.Request().WithContext(ctx))

		authStart := time.Now()
		userID, authErr := auth.UserIDFromRequest(c.Request())
		m.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			m.SetErrorStage(errorStageAuth)
			err := c.JSON(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized})
			m.Log(c.Response().Status, authErr)
			return err
		}

		handlerErr := rt.fn(c, userID, m)
		var err error
		if handlerErr != nil {
			err = writeError(c, m, rt.notFound, handlerErr)
		}
		m.Log(c.Response().Status, handlerErr)
		return err
	}
}

func writeError(c echo.Context, m *requestMetrics, notFound string, err error) error {
	if c.Response().Committed {
		m.SetErrorStage(errorStageEncode)
		return err
	}
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, ErrUnauthorized):
		m.SetErrorStage(errorStageAuth)
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: notFound})
	default:
		m.SetErrorStage(errorStageService)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: msgInternalError})
	}
}
