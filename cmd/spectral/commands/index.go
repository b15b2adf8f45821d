package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/bandio"
	"github.com/banshee-data/spectral.report/internal/config"
	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/pipeline"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/render"
	"github.com/banshee-data/spectral.report/internal/security"
	"github.com/banshee-data/spectral.report/internal/spectral"
	"github.com/banshee-data/spectral.report/internal/units"
)

func newIndexCommand() *cobra.Command {
	var (
		indices  []string
		outDir   string
		noPNG    bool
		noReport bool
		tempUnit string
		workers  int
		format   string
	)

	cmd := &cobra.Command{
		Use:   "index SCENE_DIR",
		Short: "Compute spectral indices for one scene",
		Long: `Compute one or more spectral indices for a scene directory.

Each index is written as a float32 GeoTIFF (or an ESRI ASCII grid with
--format asc) carrying the scene's georeferencing, with Undefined pixels as
NODATA, plus a PNG heat map and a shared HTML report with per-index
histograms.`,
		Example: `  # NDVI and EVI for one acquisition
  spectral index scenes/2024-06 --index ndvi,evi --out out/2024-06

  # Land surface temperature proxy in kelvin
  spectral index scenes/2024-06 --index lst --temperature-unit kelvin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.EmptyAnalysisConfig()
			if cmd.Flags().Changed("temperature-unit") {
				overrides.TemperatureUnit = &tempUnit
			}
			if cmd.Flags().Changed("workers") {
				overrides.Workers = &workers
			}
			if cmd.Flags().Changed("format") {
				overrides.OutputFormat = &format
			}
			cfg, err := loadConfig(overrides)
			if err != nil {
				return err
			}
			lib, err := spectral.NewLibrary(cfg.LibraryOptions())
			if err != nil {
				return err
			}

			scene, err := bandio.LoadScene(files, args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			results, err := pipeline.NewRunner(lib, cfg.GetWorkers()).RunIndex(cmd.Context(), scene, indices...)
			if err != nil {
				return err
			}
			took := time.Since(start)

			out, err := newOutputs(outDir, cfg.GetOutputFormat())
			if err != nil {
				return err
			}
			unit := cfg.GetTemperatureUnit()
			series := make([]render.IndexSeries, 0, len(results))
			for i := range results {
				r := &results[i]
				label := strings.ToUpper(string(r.Name))
				if r.Name == spectral.IndexLST {
					if r.Grid, err = temperatureOutput(r.Name, r.Grid, unit); err != nil {
						return err
					}
					r.Summary = raster.Summarize(r.Grid)
					label += " (" + unit + ")"
				}
				base := security.SanitizeFilename(scene.Name) + "_" + string(r.Name)
				if err := out.grid(base, r.Grid, r.Profile); err != nil {
					return err
				}
				if !noPNG {
					err := out.stream(outputPNG, base+".png", func(w io.Writer) error {
						return render.IndexPNG(w, r.Grid, label+" "+scene.Name, render.DefaultSize)
					})
					if err != nil {
						return err
					}
				}
				series = append(series, render.IndexSeries{Label: label, Grid: r.Grid})
			}
			if !noReport {
				report := render.Report{Title: "Spectral indices", Subtitle: scene.Name, Indices: series}
				err := out.stream(outputReport, security.SanitizeFilename(scene.Name)+"_report.html", func(w io.Writer) error {
					return render.WriteReport(w, report)
				})
				if err != nil {
					return err
				}
			}

			printSummaries(cmd.OutOrStdout(), results)

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			if store == nil {
				return nil
			}
			run, err := db.NewIndexRun(scene, results, took)
			if err != nil {
				return err
			}
			if err := store.Insert(run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			if err := out.record(store, run.RunID); err != nil {
				return err
			}
			monitoring.Logf("[index] recorded run %s", run.RunID)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", run.RunID)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&indices, "index", "i", []string{string(spectral.IndexNDVI)}, "indices to compute (comma separated)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "output directory")
	cmd.Flags().BoolVar(&noPNG, "no-png", false, "skip PNG heat maps")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip the HTML report")
	cmd.Flags().StringVar(&tempUnit, "temperature-unit", units.Celsius, "LST output unit: "+units.GetValidUnitsString())
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel index computations (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&format, "format", string(bandio.FormatGTiff), "output raster format: gtiff or asc")

	return cmd
}

func printSummaries(w io.Writer, results []pipeline.IndexResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tVALID\tUNDEFINED\tMIN\tMAX\tMEAN")
	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.4f\t%.4f\t%.4f\n", r.Name, s.Valid, s.Undefined, s.Min, s.Max, s.Mean)
	}
	tw.Flush()
}
