// Package commands implements the spectral command line: index and change
// analyses over Sentinel-2 scenes, plus run history, its HTTP API and schema
// maintenance.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/config"
	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/fsutil"
	"github.com/banshee-data/spectral.report/internal/monitoring"
)

var (
	// Global flags
	configPath string
	dbPath     string
	noRecord   bool
	quiet      bool

	// runs --server
	serverURL string

	// files is the filesystem used for scene input and output artefacts.
	files fsutil.FileSystem = fsutil.OSFileSystem{}
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spectral",
		Short: "Spectral indices and two-epoch change classification",
		Long: `spectral computes per-pixel spectral indices (NDVI, NDWI, GNDVI, NDSI, SWI,
NBR, EVI and an LST proxy) from co-registered band grids, and classifies
pixel change between two acquisitions into four categories:

  0  no change
  1  family A changed
  2  family B changed
  3  both families changed

Scenes are directories of co-registered band rasters (.jp2, .tif, .asc)
named by band role (red.tif, nir.tif) or Sentinel-2 band
(T36QUL_20240227T082911_B04_10m.jp2). Results are written as GeoTIFF.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quiet {
				monitoring.SetLogger(nil)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "analysis config file (.json, .yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "run history database (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noRecord, "no-record", false, "do not record the run in the history database")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic logging")

	rootCmd.AddCommand(newIndexCommand())
	rootCmd.AddCommand(newChangeCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// loadConfig resolves the analysis configuration: built-in defaults, then the
// --config file, then any overrides from command flags.
func loadConfig(overrides *config.AnalysisConfig) (*config.AnalysisConfig, error) {
	cfg := config.DefaultAnalysisConfig()
	if configPath != "" {
		fileCfg, err := config.LoadAnalysisConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}
	cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveDBPath(cfg *config.AnalysisConfig) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.GetDatabasePath()
}

// openStore opens the run history database, migrating it to the latest
// schema. It returns a nil store when recording is disabled.
func openStore(cfg *config.AnalysisConfig) (*db.RunStore, func(), error) {
	if noRecord {
		return nil, func() {}, nil
	}
	database, err := db.NewDB(resolveDBPath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	return db.NewRunStore(database, nil), func() { database.Close() }, nil
}
