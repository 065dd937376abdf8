package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/nutrid/internal/foods"
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
	"github.com/fyrsmithlabs/nutrid/internal/predictor"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

// errorResponse maps an error to a status code and client-facing message.
func errorResponse(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	switch {
	case errors.Is(err, nutrition.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tracking.ErrInvalidDate):
		return http.StatusBadRequest, msgInvalidDate
	case errors.Is(err, foods.ErrInvalidPortion):
		return http.StatusBadRequest, "Portion must be greater than 0"
	case errors.Is(err, foods.ErrPortionTooLarge):
		return http.StatusBadRequest, fmt.Sprintf("Portion must not exceed %g g", foods.MaxPortion)
	case errors.Is(err, foods.ErrFoodNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tracking.ErrInvalidEntry):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tracking.ErrNotFound):
		return http.StatusNotFound, msgNoTracking
	}

	var pe *predictor.PredictionError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError, pe.Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// handleError writes every error as {"status":"error","message":...}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := errorResponse(err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, Envelope{Status: statusError, Message: msg})
	}
	if err != nil {
		s.logger.Error(c.Request().Context(), "failed to write error response", zap.Error(err))
	}
}
