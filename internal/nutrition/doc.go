// Package nutrition defines the infant profile, nutrient quantities and the
// categorical feature encoder shared by the predictor and the tracker.
//
// Feature layout:
//
// The encoder produces six features in a fixed order matching the offline
// training data:
//
//	[0] usia_bulan       age in months
//	[1] gender           L=0, P=1
//	[2] berat_kg         weight in kg
//	[3] tinggi_cm        height in cm
//	[4] aktivitas_level  Aktif=0, Rendah=1, Sangat_Aktif=2, Sedang=3
//	[5] status_asi       ASI+MPASI=0, ASI_Eksklusif=1, MPASI=2
//
// The odd-looking activity and feeding codes are the alphabetical label
// encoding the model was trained with and must not be "fixed".
package nutrition
