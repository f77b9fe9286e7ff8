package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datasciencecampus/rap-for-maps/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and unpack the source datasets",
	Long: `Downloads the demand-zone boundary archive and the supply-point
spreadsheet into the local cache directory. The boundary dataset is a zipped
shapefile; it is extracted in place so compute can read it directly.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		cacheDir := cfg.Data.CacheDir
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return eris.Wrap(err, "fetch: create cache dir")
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: cfg.Data.UserAgent})

		zipPath := filepath.Join(cacheDir, "boundaries.zip")
		n, err := f.DownloadToFile(ctx, cfg.Data.BoundariesURL, zipPath)
		if err != nil {
			return eris.Wrap(err, "fetch: download boundaries")
		}
		zap.L().Info("downloaded boundary archive",
			zap.String("path", zipPath),
			zap.Int64("bytes", n),
		)

		extracted, err := fetcher.ExtractZIP(zipPath, cacheDir)
		if err != nil {
			return eris.Wrap(err, "fetch: extract boundaries")
		}
		shpPath, err := fetcher.FindExtracted(extracted, ".shp")
		if err != nil {
			return err
		}
		zap.L().Info("extracted boundary shapefile",
			zap.String("path", shpPath),
			zap.Int("files", len(extracted)),
		)

		xlsxPath := filepath.Join(cacheDir, "schools.xlsx")
		n, err = f.DownloadToFile(ctx, cfg.Data.SchoolsURL, xlsxPath)
		if err != nil {
			return eris.Wrap(err, "fetch: download schools")
		}
		zap.L().Info("downloaded supply spreadsheet",
			zap.String("path", xlsxPath),
			zap.Int64("bytes", n),
		)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
