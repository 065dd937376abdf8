package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	nhttp "github.com/fyrsmithlabs/nutrid/internal/http"
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

// profileFlags registers the infant profile flags shared by predict and
// init.
type profileFlags struct {
	age      int
	gender   string
	weight   float64
	height   float64
	activity string
	asi      string
}

var profileFlagNames = []string{"age", "gender", "weight", "height", "activity", "asi"}

func (p *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.age, "age", 0, "age in months (usia_bulan)")
	cmd.Flags().StringVar(&p.gender, "gender", "", "gender: L or P")
	cmd.Flags().Float64Var(&p.weight, "weight", 0, "weight in kg (berat_kg)")
	cmd.Flags().Float64Var(&p.height, "height", 0, "height in cm (tinggi_cm)")
	cmd.Flags().StringVar(&p.activity, "activity", "", "activity level: Rendah, Sedang, Aktif or Sangat_Aktif")
	cmd.Flags().StringVar(&p.asi, "asi", "", "feeding status: ASI_Eksklusif, ASI+MPASI or MPASI")
}

func (p *profileFlags) profile() nutrition.Profile {
	return nutrition.Profile{
		AgeMonths:     p.age,
		Gender:        p.gender,
		WeightKg:      p.weight,
		HeightCm:      p.height,
		ActivityLevel: p.activity,
		FeedingStatus: p.asi,
	}
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var pf profileFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict daily nutrient needs for an infant",
		Long: `Predict daily calories, protein, fat and carbohydrate needs.

Examples:
  nutrictl predict --age 9 --gender L --weight 9 --height 70 \
    --activity Sedang --asi ASI+MPASI`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, profileFlagNames...); err != nil {
				return err
			}
			var targets nutrition.Targets
			if err := opts.client().api(cmd.Context(), http.MethodPost, "/prediction/predict_nutrition", pf.profile(), &targets); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), targets)
			}
			printTargets(cmd.OutOrStdout(), targets)
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

// initRequest mirrors the initialize-tracking body.
type initRequest struct {
	UserID string `json:"user_id"`
	nutrition.Profile
	Date string `json:"date,omitempty"`
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var (
		pf   profileFlags
		user string
		date string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Start a tracking day with predicted needs",
		Long: `Initialize daily tracking for a user. Any foods already logged for
that day are discarded.

Examples:
  nutrictl init --user u1 --age 9 --gender L --weight 9 --height 70 \
    --activity Sedang --asi ASI+MPASI --date 2024-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, append([]string{"user"}, profileFlagNames...)...); err != nil {
				return err
			}
			req := initRequest{UserID: user, Profile: pf.profile(), Date: date}

			var resp nhttp.InitializeResponse
			if err := opts.client().api(cmd.Context(), http.MethodPost, "/tracking/initialize-tracking", req, &resp); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking initialized for %s on %s\n", user, resp.Date)
			printTargets(cmd.OutOrStdout(), resp.PredictedNeeds)
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&user, "user", "", "user ID")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default: server's today)")
	return cmd
}

type addFoodRequest struct {
	UserID   string  `json:"user_id"`
	FoodName string  `json:"food_name"`
	Date     string  `json:"date"`
	Portion  float64 `json:"portion"`
}

func newAddFoodCmd(opts *rootOptions) *cobra.Command {
	var req addFoodRequest
	cmd := &cobra.Command{
		Use:   "add-food",
		Short: "Log a consumed food portion",
		Long: `Log a food portion for a user and day and show the updated evaluation.

Examples:
  nutrictl add-food --user u1 --food Rice --portion 50
  nutrictl add-food --user u1 --food "Sweet Potato" --portion 80 --date 2024-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "user", "food", "portion"); err != nil {
				return err
			}
			if req.Date == "" {
				req.Date = today()
			}

			var resp nhttp.TrackingResponse
			if err := opts.client().api(cmd.Context(), http.MethodPost, "/tracking/add-food", req, &resp); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printTracking(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "user ID")
	cmd.Flags().StringVar(&req.FoodName, "food", "", "food name as listed by 'nutrictl foods'")
	cmd.Flags().Float64Var(&req.Portion, "portion", 0, "portion in grams")
	cmd.Flags().StringVar(&req.Date, "date", "", "date as YYYY-MM-DD (default: today)")
	return cmd
}

func newDailyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daily <user> [date]",
		Short: "Show a user's tracking day and evaluation",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := today()
			if len(args) == 2 {
				date = args[1]
			}
			path := fmt.Sprintf("/tracking/get-daily/%s/%s", url.PathEscape(args[0]), url.PathEscape(date))

			var resp nhttp.TrackingResponse
			if err := opts.client().api(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printTracking(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func newFoodsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "foods",
		Short: "List foods known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp nhttp.FoodsResponse
			if err := opts.client().api(cmd.Context(), http.MethodGet, "/tracking/foods", nil, &resp); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			for _, name := range resp.Foods {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check nutrid server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp nhttp.HealthResponse
			if err := opts.client().call(cmd.Context(), http.MethodGet, "/health", nil, &resp, false); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
			fmt.Fprintf(out, "Foods:         %d\n", resp.Foods)
			if resp.Model != "" {
				fmt.Fprintf(out, "Model:         %s\n", resp.Model)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTargets(w io.Writer, t nutrition.Targets) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NUTRIENT\tDAILY NEED\n")
	fmt.Fprintf(tw, "calories\t%.2f kcal\n", t.Calories)
	fmt.Fprintf(tw, "proteins\t%.2f g\n", t.Proteins)
	fmt.Fprintf(tw, "fat\t%.2f g\n", t.Fat)
	fmt.Fprintf(tw, "carbohydrate\t%.2f g\n", t.Carbohydrate)
	tw.Flush()
}

func printTracking(w io.Writer, resp nhttp.TrackingResponse) {
	rec := resp.Tracking
	fmt.Fprintf(w, "%s on %s: %d food(s)\n", rec.UserID, rec.Date, len(rec.Foods))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range rec.Foods {
		fmt.Fprintf(tw, "  %s\t%gg\t%.2f kcal\n", f.Name, f.Portion, f.Nutrients.Calories)
	}
	tw.Flush()

	if resp.Evaluation == nil {
		fmt.Fprintln(w, "No predicted needs for this day; run 'nutrictl init' to enable evaluation.")
		return
	}

	ev := resp.Evaluation
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NUTRIENT\tCONSUMED\tNEEDED\tPERCENT\tSTATUS\n")
	for _, row := range []struct {
		name string
		e    tracking.NutrientEvaluation
	}{
		{"calories", ev.Calories},
		{"proteins", ev.Proteins},
		{"fat", ev.Fat},
		{"carbohydrate", ev.Carbohydrate},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.1f%%\t%s\n", row.name, row.e.Consumed, row.e.PredictedNeeded, row.e.Percentage, row.e.Status)
	}
	tw.Flush()
}
