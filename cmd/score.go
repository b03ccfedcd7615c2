package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single business",
	Long: `Score a business on the five EJV dimensions and print the result.

Examples:
  # Score a national chain by name
  score --id node/123 --name "Walmart Supercenter" --postal-code 78701

  # Score with a census tract for local income
  score --id b-1 --name "Corner Pizza" --state 48 --county 453 --tract 001100

  # Amplify by participation records from a JSON file
  score --id b-2 --name "Rosa's Market" --participation records.json --purchase 80

  # Save the result to score history
  score --id b-3 --name Costco --save --format json`,
	RunE: runScore,
}

func init() {
	addScoreFlags(scoreCmd.Flags())
	rootCmd.AddCommand(scoreCmd)
}

func addScoreFlags(f *pflag.FlagSet) {
	f.String("id", "", "business identifier (required)")
	f.String("name", "", "business name")
	f.String("postal-code", "", "5-digit postal code")
	f.String("industry", "", "industry hint, e.g. supermarket or shop=convenience")
	f.String("state", "", "census tract state FIPS")
	f.String("county", "", "census tract county FIPS")
	f.String("tract", "", "census tract code")
	f.String("participation", "", "path to a JSON object of participation records keyed by pathway")
	f.Float64("purchase", 0, "purchase amount for participation scoring (default nominal transaction)")
	f.String("format", "table", "output format: table or json")
	f.Bool("save", false, "save the result to score history")
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	profile, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}
	recordsPath, _ := f.GetString("participation")
	purchase, _ := f.GetFloat64("purchase")
	format, _ := f.GetString("format")
	save, _ := f.GetBool("save")

	if !save {
		cfg.Store.Driver = "none"
	}
	env, err := initScoring(ctx, "score")
	if err != nil {
		return err
	}
	defer env.Close()
	if save && env.Store == nil {
		return eris.New("--save needs a store; store.driver is none")
	}

	out := cmd.OutOrStdout()
	if recordsPath == "" {
		res, err := env.Engine.ScoreSimple(ctx, profile)
		if err != nil {
			return err
		}
		if save {
			saveResult(ctx, env.Store, store.KindSimple, res, res.Value.Retained, ejv.MinParticipationFactor, res)
		}
		return printResult(out, format, res, nil)
	}

	records, err := readRecords(recordsPath)
	if err != nil {
		return err
	}
	req := ejv.ParticipationRequest{Business: profile, Records: records}
	if f.Changed("purchase") {
		req.PurchaseAmount = &purchase
	}
	res, err := env.Engine.ScoreWithParticipation(ctx, req)
	if err != nil {
		return err
	}
	if save {
		saveResult(ctx, env.Store, store.KindParticipation, res.Result, res.RetainedForPurchase, res.PAF, res)
	}
	return printResult(out, format, res.Result, res)
}

func profileFromFlags(cmd *cobra.Command) (ejv.BusinessProfile, error) {
	f := cmd.Flags()
	id, _ := f.GetString("id")
	if id == "" {
		return ejv.BusinessProfile{}, eris.New("--id is required")
	}
	name, _ := f.GetString("name")
	postal, _ := f.GetString("postal-code")
	industry, _ := f.GetString("industry")
	state, _ := f.GetString("state")
	county, _ := f.GetString("county")
	tract, _ := f.GetString("tract")

	p := ejv.BusinessProfile{ID: id, Name: name, PostalCode: postal, IndustryHint: industry}
	if state != "" || county != "" || tract != "" {
		if state == "" || county == "" || tract == "" {
			return p, eris.New("--state, --county and --tract must be given together")
		}
		p.Tract = &ejv.CensusTract{State: state, County: county, Tract: tract}
	}
	return p, nil
}

func readRecords(path string) (map[string]ejv.ParticipationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read participation file %s", path)
	}
	var records map[string]ejv.ParticipationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "parse participation file %s", path)
	}
	return records, nil
}

func saveResult(ctx context.Context, st store.Store, kind string, res *ejv.Result, retained, paf float64, payload any) {
	raw, err := json.Marshal(payload)
	if err == nil {
		err = st.SaveScore(ctx, &store.ScoreRecord{
			Kind:       kind,
			BusinessID: res.BusinessID,
			Name:       res.Name,
			PostalCode: res.PostalCode,
			Score:      res.Score,
			Retained:   retained,
			PAF:        paf,
			Result:     raw,
		})
	}
	if err != nil {
		zap.L().Warn("save score history", zap.String("business_id", res.BusinessID), zap.Error(err))
	}
}

// printResult writes the result as JSON or as a table. amp is nil for
// simple scores.
func printResult(w io.Writer, format string, res *ejv.Result, amp *ejv.AmplifiedResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if amp != nil {
			return enc.Encode(amp)
		}
		return enc.Encode(res)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Business\t%s %s\n", res.BusinessID, res.Name)
	fmt.Fprintf(tw, "Industry\t%s (%s)\n", res.Industry.Type, res.Industry.Source)
	fmt.Fprintf(tw, "Size profile\t%s\n", res.SizeProfile.Type)
	fmt.Fprintf(tw, "Score\t%.4f (%.2f%%)\n", res.Score, res.Percentage)
	fmt.Fprintf(tw, "  Fair wage\t%.4f\n", res.Dimensions.FairWage)
	fmt.Fprintf(tw, "  Pay equity\t%.4f\n", res.Dimensions.PayEquity)
	fmt.Fprintf(tw, "  Local impact\t%.4f\n", res.Dimensions.LocalImpact)
	fmt.Fprintf(tw, "  Affordability\t%.4f\n", res.Dimensions.Affordability)
	fmt.Fprintf(tw, "  Environmental\t%.4f\n", res.Dimensions.Environmental)
	fmt.Fprintf(tw, "Retained / leaked\t$%.2f / $%.2f of $%.2f\n", res.Value.Retained, res.Value.Leaked, res.Value.Nominal)
	fmt.Fprintf(tw, "Payroll\t%d employees at $%.2f/h (%s)\n", res.Payroll.ActiveEmployees, res.Payroll.AvgHourlyWage, res.Payroll.WageSource)
	if amp != nil {
		fmt.Fprintf(tw, "PAF\t%.4f\n", amp.PAF)
		fmt.Fprintf(tw, "Purchase\t$%.2f retained $%.2f, amplified $%.2f (+$%.2f)\n",
			amp.PurchaseAmount, amp.RetainedForPurchase, amp.AmplifiedValue, amp.AmplificationDelta)
		for _, p := range amp.IgnoredPathways {
			fmt.Fprintf(tw, "Ignored pathway\t%s\n", p)
		}
	}
	return tw.Flush()
}
