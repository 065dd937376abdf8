package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/nutrid/internal/foods"
	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

const (
	msgMissingFields = "Missing required fields"
	msgInvalidBody   = "Invalid request body"
	msgInvalidDate   = "Invalid date format. Use YYYY-MM-DD"
	msgNoTracking    = "No tracking data found"
)

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Status: statusSuccess, Data: data})
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody).SetInternal(err)
	}
	return nil
}

// annotate adds the user and date to the request context so they show up
// in the request log line.
func annotate(c echo.Context, userID, date string) context.Context {
	ctx := logging.WithDate(logging.WithUserID(c.Request().Context(), userID), date)
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "nutrid",
		Foods:   s.svc.Foods.Len(),
		Model:   s.svc.ModelName,
	})
}

func (s *Server) handlePredict(c echo.Context) error {
	var req PredictRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if field := req.missing(); field != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing field: "+field)
	}

	targets, err := s.svc.Predictor.Predict(c.Request().Context(), req.profile())
	if err != nil {
		return err
	}
	return success(c, targets)
}

func (s *Server) handleInitialize(c echo.Context) error {
	var req InitializeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.UserID == nil || *req.UserID == "" || req.missing() != "" {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}

	date := tracking.Today(s.now())
	if strings.TrimSpace(req.Date) != "" {
		d, err := tracking.ParseDate(req.Date)
		if err != nil {
			return err
		}
		date = d
	}
	ctx := annotate(c, *req.UserID, date)

	// Predict before touching the store so a failed prediction leaves no
	// partial state.
	targets, err := s.svc.Predictor.Predict(ctx, req.profile())
	if err != nil {
		return err
	}
	s.svc.Tracking.Initialize(ctx, *req.UserID, date, targets)

	return success(c, InitializeResponse{
		PredictedNeeds:      targets,
		TrackingInitialized: true,
		Date:                date,
	})
}

func (s *Server) handleAddFood(c echo.Context) error {
	var req AddFoodRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.UserID == nil || *req.UserID == "" || req.FoodName == nil || req.Date == nil || req.Portion == nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}

	date, err := tracking.ParseDate(*req.Date)
	if err != nil {
		return err
	}
	ctx := annotate(c, *req.UserID, date)

	match, err := s.svc.Foods.Lookup(*req.FoodName, *req.Portion)
	if err != nil {
		if errors.Is(err, foods.ErrFoodNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("Food '%s' not found in database", *req.FoodName)).SetInternal(err)
		}
		return err
	}

	rec, err := s.svc.Tracking.AddFood(ctx, *req.UserID, date, tracking.FoodEntry{
		Name:      *req.FoodName,
		Portion:   match.Portion,
		Nutrients: match.Nutrients,
		Notes:     match.Record.Notes,
	})
	if err != nil {
		return err
	}

	s.logger.Debug(ctx, "food added",
		zap.String("food", match.Record.Name),
		zap.Float64("portion", match.Portion),
		zap.Int("entries", len(rec.Foods)),
	)
	return success(c, newTrackingResponse(rec))
}

func (s *Server) handleGetDaily(c echo.Context) error {
	userID := c.Param("user_id")
	date, err := tracking.ParseDate(c.Param("date"))
	if err != nil {
		return err
	}
	ctx := annotate(c, userID, date)

	rec, err := s.svc.Tracking.Get(ctx, userID, date)
	if err != nil {
		return err
	}
	return success(c, newTrackingResponse(rec))
}

func (s *Server) handleFoods(c echo.Context) error {
	names := s.svc.Foods.Names()
	return success(c, FoodsResponse{Foods: names, Count: len(names)})
}
