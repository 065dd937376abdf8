package nutrition

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrInvalidInput reports a missing, malformed or unrecognized input field.
	ErrInvalidInput = errors.New("invalid input")
)

// Gender is the infant's sex as recorded by the health post.
type Gender string

const (
	GenderMale   Gender = "L" // laki-laki
	GenderFemale Gender = "P" // perempuan
)

// ActivityLevel is the caregiver-reported activity level.
type ActivityLevel string

const (
	ActivityLow      ActivityLevel = "Rendah"
	ActivityModerate ActivityLevel = "Sedang"
	ActivityActive   ActivityLevel = "Aktif"
	ActivityVeryHigh ActivityLevel = "Sangat_Aktif"
)

// FeedingStatus is the breastfeeding / complementary feeding stage.
type FeedingStatus string

const (
	FeedingExclusiveBreastMilk FeedingStatus = "ASI_Eksklusif"
	FeedingMixed               FeedingStatus = "ASI+MPASI"
	FeedingComplementary       FeedingStatus = "MPASI"
)

// ParseGender matches s exactly (case-sensitive) against the known genders.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(s); g {
	case GenderMale, GenderFemale:
		return g, nil
	}
	return "", fmt.Errorf("%w: gender %q (want L or P)", ErrInvalidInput, s)
}

// ParseActivityLevel matches s exactly (case-sensitive) against the known levels.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	switch a := ActivityLevel(s); a {
	case ActivityLow, ActivityModerate, ActivityActive, ActivityVeryHigh:
		return a, nil
	}
	return "", fmt.Errorf("%w: aktivitas_level %q (want Rendah, Sedang, Aktif or Sangat_Aktif)", ErrInvalidInput, s)
}

// ParseFeedingStatus matches s exactly (case-sensitive) against the known statuses.
func ParseFeedingStatus(s string) (FeedingStatus, error) {
	switch f := FeedingStatus(s); f {
	case FeedingExclusiveBreastMilk, FeedingMixed, FeedingComplementary:
		return f, nil
	}
	return "", fmt.Errorf("%w: status_asi %q (want ASI_Eksklusif, ASI+MPASI or MPASI)", ErrInvalidInput, s)
}

// Code returns the numeric feature value for g.
func (g Gender) Code() float64 {
	switch g {
	case GenderFemale:
		return 1
	default:
		return 0
	}
}

// Code returns the numeric feature value for a.
func (a ActivityLevel) Code() float64 {
	switch a {
	case ActivityActive:
		return 0
	case ActivityLow:
		return 1
	case ActivityVeryHigh:
		return 2
	case ActivityModerate:
		return 3
	}
	return 0
}

// Code returns the numeric feature value for f.
func (f FeedingStatus) Code() float64 {
	switch f {
	case FeedingMixed:
		return 0
	case FeedingExclusiveBreastMilk:
		return 1
	case FeedingComplementary:
		return 2
	}
	return 0
}

// Profile is one prediction request: the infant's demographic and activity
// inputs as received from the client. Categorical fields stay raw strings
// until Encode parses them.
type Profile struct {
	AgeMonths     int     `json:"usia_bulan"`
	Gender        string  `json:"gender"`
	WeightKg      float64 `json:"berat_kg"`
	HeightCm      float64 `json:"tinggi_cm"`
	ActivityLevel string  `json:"aktivitas_level"`
	FeedingStatus string  `json:"status_asi"`
}

// Upper bounds of a plausible profile. They are far outside the infant range
// the model was trained on and only keep absurd inputs away from it.
const (
	MaxAgeMonths = 240
	MaxWeightKg  = 200.0
	MaxHeightCm  = 250.0
)

// Validate checks the numeric ranges of the profile. Categorical fields are
// checked by Encode.
func (p Profile) Validate() error {
	if p.AgeMonths < 0 || p.AgeMonths > MaxAgeMonths {
		return fmt.Errorf("%w: usia_bulan must be between 0 and %d, got %d", ErrInvalidInput, MaxAgeMonths, p.AgeMonths)
	}
	if !inRange(p.WeightKg, MaxWeightKg) {
		return fmt.Errorf("%w: berat_kg must be > 0 and <= %g, got %g", ErrInvalidInput, MaxWeightKg, p.WeightKg)
	}
	if !inRange(p.HeightCm, MaxHeightCm) {
		return fmt.Errorf("%w: tinggi_cm must be > 0 and <= %g, got %g", ErrInvalidInput, MaxHeightCm, p.HeightCm)
	}
	return nil
}

// inRange reports whether v is in (0, limit]. NaN fails both comparisons.
func inRange(v, limit float64) bool {
	return v > 0 && v <= limit
}
