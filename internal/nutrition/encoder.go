package nutrition

// FeatureCount is the number of model input features.
const FeatureCount = 6

// Features is the encoded model input, see the package doc for the layout.
type Features [FeatureCount]float64

// Slice returns the features as a fresh slice.
func (f Features) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, f[:])
	return out
}

// Encode maps the profile's categorical fields to their numeric codes.
// Age, weight and height pass through unchanged; range checks belong to
// Profile.Validate.
func Encode(p Profile) (Features, error) {
	gender, err := ParseGender(p.Gender)
	if err != nil {
		return Features{}, err
	}
	activity, err := ParseActivityLevel(p.ActivityLevel)
	if err != nil {
		return Features{}, err
	}
	feeding, err := ParseFeedingStatus(p.FeedingStatus)
	if err != nil {
		return Features{}, err
	}

	return Features{
		float64(p.AgeMonths),
		gender.Code(),
		p.WeightKg,
		p.HeightCm,
		activity.Code(),
		feeding.Code(),
	}, nil
}
