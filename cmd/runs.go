package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored analysis runs",
	Long:  "Commands for listing runs and exporting their score tables.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's score table as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID := args[0]
		if _, err := st.GetRun(ctx, runID); err != nil {
			return err
		}

		scores, err := st.Scores(ctx, runID)
		if err != nil {
			return err
		}

		per, _ := cmd.Flags().GetFloat64("per")
		if per == 0 {
			per = cfg.Analysis.DisplayScale
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return writeScoresTo(os.Stdout, scores, per)
		}
		return writeScoresCSV(out, scores, per)
	},
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tATTRIBUTE\tTHRESHOLD\tZONES\tSUPPLIERS\tSKIPPED\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Status,
			run.Params.Attribute,
			run.Params.Threshold,
			run.DemandCount,
			run.SupplyCount,
			len(run.Skipped),
			run.CreatedAt.Format(time.RFC3339),
		)
	}
	_ = tw.Flush()
}

func writeScoresTo(w io.Writer, scores []model.ZoneScore, per float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEMAND_ID\tSCORE")
	for _, zs := range scores {
		fmt.Fprintf(tw, "%s\t%s\n", zs.DemandID, strconv.FormatFloat(zs.Score*per, 'f', 6, 64))
	}
	return tw.Flush()
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max runs to list")
	runsExportCmd.Flags().String("out", "", "CSV output path (default: print to stdout)")
	runsExportCmd.Flags().Float64("per", 0, "display scale for exported scores (default from config)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}
