package main

import (
	"encoding/csv"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/datasciencecampus/rap-for-maps/internal/access"
	"github.com/datasciencecampus/rap-for-maps/internal/loader"
	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

var computeFlags struct {
	demandPath string
	supplyPath string

	idField     string
	nameField   string
	popFields   []string
	sheetName   string
	idColumn    string
	nameColumn  string
	eastColumn  string
	northColumn string
	capColumn   string

	attribute   string
	threshold   float64
	concurrency int

	outPath string
	per     float64
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run the accessibility analysis",
	Long: `Loads demand zones from a shapefile and supply points from a
spreadsheet, computes a floating catchment accessibility score per zone,
persists the run, and writes the output table as CSV with a summary file
alongside it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if computeFlags.demandPath == "" || computeFlags.supplyPath == "" {
			return eris.New("compute: --demand and --supply are required")
		}
		if err := cfg.Validate("compute"); err != nil {
			return err
		}

		attribute := computeFlags.attribute
		if attribute == "" {
			attribute = cfg.Analysis.Attribute
		}
		threshold := computeFlags.threshold
		if threshold == 0 {
			threshold = cfg.Analysis.Threshold
		}
		concurrency := computeFlags.concurrency
		if concurrency == 0 {
			concurrency = cfg.Analysis.Concurrency
		}

		popFields := computeFlags.popFields
		if len(popFields) == 0 {
			popFields = []string{attribute}
		}

		demand, err := loader.DemandFromShapefile(computeFlags.demandPath, loader.DemandOptions{
			IDField:          computeFlags.idField,
			NameField:        computeFlags.nameField,
			PopulationFields: popFields,
			SRID:             cfg.Analysis.SRID,
		})
		if err != nil {
			return err
		}

		supply, err := loader.SupplyFromXLSX(computeFlags.supplyPath, loader.SupplyOptions{
			SheetName:      computeFlags.sheetName,
			IDColumn:       computeFlags.idColumn,
			NameColumn:     computeFlags.nameColumn,
			EastingColumn:  computeFlags.eastColumn,
			NorthingColumn: computeFlags.northColumn,
			CapacityColumn: computeFlags.capColumn,
			SRID:           cfg.Analysis.SRID,
		})
		if err != nil {
			return err
		}

		zap.L().Info("loaded input datasets",
			zap.Int("demand_units", len(demand)),
			zap.Int("supply_points", len(supply)),
		)

		engine, err := access.NewEngine(demand, supply, cfg.Analysis.SRID)
		if err != nil {
			return err
		}

		params := model.AnalysisParams{
			Attribute:   attribute,
			Threshold:   threshold,
			SRID:        cfg.Analysis.SRID,
			Concurrency: concurrency,
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, params, len(demand), len(supply))
		if err != nil {
			return err
		}

		result, err := engine.Run(ctx, params)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID); failErr != nil {
				zap.L().Error("compute: mark run failed", zap.Error(failErr))
			}
			return err
		}

		if err := st.SaveScores(ctx, run.ID, result.Scores); err != nil {
			return err
		}
		if err := st.CompleteRun(ctx, run.ID, result.Skipped); err != nil {
			return err
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", run.ID),
			zap.Int("zones", len(result.Scores)),
			zap.Int("skipped_suppliers", len(result.Skipped)),
		)

		if computeFlags.outPath != "" {
			per := computeFlags.per
			if per == 0 {
				per = cfg.Analysis.DisplayScale
			}
			if err := writeScoresCSV(computeFlags.outPath, result.Scores, per); err != nil {
				return err
			}
			if err := writeRunSummary(summaryPath(computeFlags.outPath), run, result, per); err != nil {
				return err
			}
			zap.L().Info("wrote output table", zap.String("path", computeFlags.outPath))
		}

		return nil
	},
}

// writeScoresCSV writes the output table. Scores are rescaled by per for
// display only; stored values stay in providers-per-head.
func writeScoresCSV(path string, scores []model.ZoneScore, per float64) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "compute: create output file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"demand_id", "accessibility_score"}); err != nil {
		return eris.Wrap(err, "compute: write header")
	}
	for _, zs := range scores {
		row := []string{zs.DemandID, strconv.FormatFloat(zs.Score*per, 'f', 6, 64)}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "compute: write row %s", zs.DemandID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "compute: flush output")
}

// runSummary is the YAML sidecar written next to the CSV export.
type runSummary struct {
	RunID        string               `yaml:"run_id"`
	Params       model.AnalysisParams `yaml:"params"`
	DemandCount  int                  `yaml:"demand_count"`
	SupplyCount  int                  `yaml:"supply_count"`
	Skipped      []string             `yaml:"skipped_suppliers,omitempty"`
	DisplayScale float64              `yaml:"display_scale"`
}

func writeRunSummary(path string, run *model.Run, result *access.Result, per float64) error {
	summary := runSummary{
		RunID:        run.ID,
		Params:       run.Params,
		DemandCount:  run.DemandCount,
		SupplyCount:  run.SupplyCount,
		Skipped:      result.Skipped,
		DisplayScale: per,
	}
	data, err := yaml.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "compute: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "compute: write summary")
	}
	return nil
}

func summaryPath(csvPath string) string {
	ext := filepath.Ext(csvPath)
	return csvPath[:len(csvPath)-len(ext)] + ".summary.yaml"
}

func init() {
	computeCmd.Flags().StringVar(&computeFlags.demandPath, "demand", "", "demand-zone shapefile path")
	computeCmd.Flags().StringVar(&computeFlags.supplyPath, "supply", "", "supply-point spreadsheet path")
	computeCmd.Flags().StringVar(&computeFlags.idField, "id-field", "GSS_CODE", "shapefile field holding the zone id")
	computeCmd.Flags().StringVar(&computeFlags.nameField, "name-field", "NAME", "shapefile field holding the zone label")
	computeCmd.Flags().StringSliceVar(&computeFlags.popFields, "population-fields", nil, "shapefile population fields to load (default: the analysis attribute)")
	computeCmd.Flags().StringVar(&computeFlags.sheetName, "sheet", "", "spreadsheet sheet name (default: first sheet)")
	computeCmd.Flags().StringVar(&computeFlags.idColumn, "supply-id-column", "URN", "spreadsheet column holding the supply id")
	computeCmd.Flags().StringVar(&computeFlags.nameColumn, "supply-name-column", "EstablishmentName", "spreadsheet column holding the supply name")
	computeCmd.Flags().StringVar(&computeFlags.eastColumn, "easting-column", "Easting", "spreadsheet column holding the easting")
	computeCmd.Flags().StringVar(&computeFlags.northColumn, "northing-column", "Northing", "spreadsheet column holding the northing")
	computeCmd.Flags().StringVar(&computeFlags.capColumn, "capacity-column", "", "spreadsheet column holding capacity (default: every supplier counts 1)")
	computeCmd.Flags().StringVar(&computeFlags.attribute, "attribute", "", "population attribute to score against (default from config)")
	computeCmd.Flags().Float64Var(&computeFlags.threshold, "threshold", 0, "catchment distance in frame units (default from config)")
	computeCmd.Flags().IntVar(&computeFlags.concurrency, "concurrency", 0, "parallel suppliers (default from config)")
	computeCmd.Flags().StringVar(&computeFlags.outPath, "out", "", "CSV output path (optional)")
	computeCmd.Flags().Float64Var(&computeFlags.per, "per", 0, "display scale for exported scores (default from config)")
	rootCmd.AddCommand(computeCmd)
}
