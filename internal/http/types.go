package http

import (
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

// Response status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// PredictRequest is the body of POST /prediction/predict_nutrition. Pointer
// fields distinguish absent keys from zero values.
type PredictRequest struct {
	AgeMonths     *int     `json:"usia_bulan"`
	Gender        *string  `json:"gender"`
	WeightKg      *float64 `json:"berat_kg"`
	HeightCm      *float64 `json:"tinggi_cm"`
	ActivityLevel *string  `json:"aktivitas_level"`
	FeedingStatus *string  `json:"status_asi"`
}

// missing returns the first absent field in request order, or "".
func (r *PredictRequest) missing() string {
	switch {
	case r.AgeMonths == nil:
		return "usia_bulan"
	case r.Gender == nil:
		return "gender"
	case r.WeightKg == nil:
		return "berat_kg"
	case r.HeightCm == nil:
		return "tinggi_cm"
	case r.ActivityLevel == nil:
		return "aktivitas_level"
	case r.FeedingStatus == nil:
		return "status_asi"
	}
	return ""
}

// profile must only be called after missing returns "".
func (r *PredictRequest) profile() nutrition.Profile {
	return nutrition.Profile{
		AgeMonths:     *r.AgeMonths,
		Gender:        *r.Gender,
		WeightKg:      *r.WeightKg,
		HeightCm:      *r.HeightCm,
		ActivityLevel: *r.ActivityLevel,
		FeedingStatus: *r.FeedingStatus,
	}
}

// InitializeRequest is the body of POST /tracking/initialize-tracking.
type InitializeRequest struct {
	UserID *string `json:"user_id"`
	PredictRequest
	Date string `json:"date,omitempty"` // defaults to today
}

// InitializeResponse is the data of a successful initialization.
type InitializeResponse struct {
	PredictedNeeds      nutrition.Targets `json:"predicted_needs"`
	TrackingInitialized bool              `json:"tracking_initialized"`
	Date                string            `json:"date"`
}

// AddFoodRequest is the body of POST /tracking/add-food.
type AddFoodRequest struct {
	UserID   *string  `json:"user_id"`
	FoodName *string  `json:"food_name"`
	Date     *string  `json:"date"`
	Portion  *float64 `json:"portion"`
}

// TrackingResponse carries a day's record and, when predicted needs were
// set for the day, its evaluation.
type TrackingResponse struct {
	Tracking   tracking.Record      `json:"tracking"`
	Evaluation *tracking.Evaluation `json:"evaluation,omitempty"`
}

func newTrackingResponse(rec tracking.Record) TrackingResponse {
	resp := TrackingResponse{Tracking: rec}
	if eval, ok := rec.Evaluation(); ok {
		resp.Evaluation = &eval
	}
	return resp
}

// FoodsResponse lists the known food names.
type FoodsResponse struct {
	Foods []string `json:"foods"`
	Count int      `json:"count"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Foods   int    `json:"foods"`
	Model   string `json:"model,omitempty"`
}
