package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/bandio"
	"github.com/banshee-data/spectral.report/internal/change"
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

// Artefact names written by the change command. The category grid takes
// the extension of the output format.
const (
	changeGridBase   = "change"
	changePNGName    = "change.png"
	changeReportName = "change_report.html"
)

func newChangeCommand() *cobra.Command {
	var (
		outDir       string
		familyA      string
		familyB      string
		thresholdA   float64
		thresholdB   float64
		direction    string
		rule         string
		mode         string
		workers      int
		writeIndices bool
		noPNG        bool
		noReport     bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "change BEFORE_DIR AFTER_DIR",
		Short: "Classify pixel change between two acquisitions",
		Long: `Compare two co-registered scenes and classify every pixel by which index
family changed between them.

In independent mode each epoch is thresholded separately and a family
counts as changed where it became positive in the later epoch. In
difference mode a family changed where |after - before| exceeds its
threshold.

The disjoint rule gives every pixel exactly one category. The ordered rule
writes A, then B, then both, matching the classic two-index change map.`,
		Example: `  # Vegetation vs water change with the defaults
  spectral change scenes/2023-06 scenes/2024-06 --out out/change

  # Magnitude of NBR and NDVI difference
  spectral change before after --family-a nbr --threshold-a 0.1 \
      --family-b ndvi --threshold-b 0.2 --mode difference --rule ordered`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.EmptyAnalysisConfig()
			flags := cmd.Flags()
			if flags.Changed("family-a") {
				overrides.FamilyAIndex = &familyA
			}
			if flags.Changed("threshold-a") {
				overrides.FamilyAThreshold = &thresholdA
			}
			if flags.Changed("family-b") {
				overrides.FamilyBIndex = &familyB
			}
			if flags.Changed("threshold-b") {
				overrides.FamilyBThreshold = &thresholdB
			}
			if flags.Changed("direction") {
				overrides.Direction = &direction
			}
			if flags.Changed("rule") {
				overrides.Rule = &rule
			}
			if flags.Changed("mode") {
				overrides.Mode = &mode
			}
			if flags.Changed("workers") {
				overrides.Workers = &workers
			}
			if flags.Changed("format") {
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

			before, err := bandio.LoadScene(files, args[0])
			if err != nil {
				return fmt.Errorf("before scene: %w", err)
			}
			after, err := bandio.LoadScene(files, args[1])
			if err != nil {
				return fmt.Errorf("after scene: %w", err)
			}
			req, err := cfg.ChangeRequest(before, after)
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := pipeline.NewRunner(lib, cfg.GetWorkers()).RunChange(cmd.Context(), req)
			if err != nil {
				return err
			}
			took := time.Since(start)

			out, err := newOutputs(outDir, cfg.GetOutputFormat())
			if err != nil {
				return err
			}
			if err := out.categories(changeGridBase, res.Categories, res.Profile); err != nil {
				return err
			}
			labels := render.CategoryLabels(res.FamilyA.Index, res.FamilyB.Index)
			title := fmt.Sprintf("%s to %s", before.Name, after.Name)
			if !noPNG {
				err := out.stream(outputPNG, changePNGName, func(w io.Writer) error {
					return render.ChangeMapPNG(w, res.Categories, title, labels, render.DefaultSize)
				})
				if err != nil {
					return err
				}
			}

			series, err := writeFamilyGrids(out, req, res, cfg.GetTemperatureUnit(), writeIndices)
			if err != nil {
				return err
			}
			if !noReport {
				report := render.Report{
					Title:    "Change report",
					Subtitle: fmt.Sprintf("%s, %s rule, %s mode", title, res.Rule, res.Mode),
					Labels:   labels,
					Tally:    res.Tally,
					Indices:  series,
				}
				err := out.stream(outputReport, changeReportName, func(w io.Writer) error {
					return render.WriteReport(w, report)
				})
				if err != nil {
					return err
				}
			}

			printTally(cmd.OutOrStdout(), labels, res.Tally)

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			if store == nil {
				return nil
			}
			run, err := db.NewChangeRun(req, res, cfg, took)
			if err != nil {
				return err
			}
			if err := store.Insert(run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			if err := out.record(store, run.RunID); err != nil {
				return err
			}
			monitoring.Logf("[change] recorded run %s", run.RunID)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", run.RunID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "output directory")
	cmd.Flags().StringVar(&familyA, "family-a", string(spectral.IndexNDVI), "index for family A")
	cmd.Flags().Float64Var(&thresholdA, "threshold-a", 0.3, "family A threshold")
	cmd.Flags().StringVar(&familyB, "family-b", string(spectral.IndexNDWI), "index for family B")
	cmd.Flags().Float64Var(&thresholdB, "threshold-b", 0.2, "family B threshold")
	cmd.Flags().StringVar(&direction, "direction", ">", "threshold comparison: >, >=, <, <=")
	cmd.Flags().StringVar(&rule, "rule", string(change.RuleDisjoint), "composition rule: disjoint or ordered")
	cmd.Flags().StringVar(&mode, "mode", config.ModeIndependent, "change mode: independent or difference")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel index computations (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&writeIndices, "write-indices", false, "also write the per-epoch index grids and differences")
	cmd.Flags().BoolVar(&noPNG, "no-png", false, "skip the change map PNG")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip the HTML report")
	cmd.Flags().StringVar(&format, "format", string(bandio.FormatGTiff), "output raster format: gtiff or asc")

	return cmd
}

// writeFamilyGrids collects the per-epoch index grids for the report and,
// when write is set, stores them (and any difference grids) as rasters.
// A family index shared by A and B is emitted once.
func writeFamilyGrids(out *outputs, req pipeline.ChangeRequest, res *pipeline.ChangeResult, unit string, write bool) ([]render.IndexSeries, error) {
	var series []render.IndexSeries
	seen := make(map[spectral.Name]bool)
	for _, fr := range []pipeline.FamilyResult{res.FamilyA, res.FamilyB} {
		if seen[fr.Index] {
			continue
		}
		seen[fr.Index] = true
		epochs := []struct {
			scene pipeline.Scene
			grid  *raster.Grid
		}{{req.Before, fr.Before}, {req.After, fr.After}}
		for _, e := range epochs {
			g, err := temperatureOutput(fr.Index, e.grid, unit)
			if err != nil {
				return nil, err
			}
			label := strings.ToUpper(string(fr.Index)) + " " + e.scene.Name
			series = append(series, render.IndexSeries{Label: label, Grid: g})
			if write {
				name := security.SanitizeFilename(e.scene.Name) + "_" + string(fr.Index)
				if err := out.grid(name, g, e.scene.Profile.ForOutput(raster.Float32, 1)); err != nil {
					return nil, err
				}
			}
		}
		if write && fr.Diff != nil {
			if err := out.grid("diff_"+string(fr.Index), fr.Diff, req.Before.Profile.ForOutput(raster.Float32, 1)); err != nil {
				return nil, err
			}
		}
	}
	return series, nil
}

// temperatureOutput converts LST grids from Celsius to the configured unit.
// Other indices are returned unchanged.
func temperatureOutput(name spectral.Name, g *raster.Grid, unit string) (*raster.Grid, error) {
	if name != spectral.IndexLST {
		return g, nil
	}
	return units.ConvertGrid(g, unit)
}

func printTally(w io.Writer, labels []string, t change.Tally) {
	counts := []int{t.NoChange, t.AOnly, t.BOnly, t.Both}
	total := t.NoChange + t.AOnly + t.BOnly + t.Both
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCATEGORY\tPIXELS\tSHARE")
	for code, n := range counts {
		share := 0.0
		if total > 0 {
			share = 100 * float64(n) / float64(total)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\n", code, labels[code], n, share)
	}
	tw.Flush()
}
