package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/api"
	"github.com/banshee-data/spectral.report/internal/bandio"
	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/httputil"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/render"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// remoteHTTP is the transport for --server requests. nil uses
// http.DefaultClient.
var remoteHTTP httputil.HTTPClient

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run history",
		Long: `Inspect the run history. list, show and delete read the local database
unless --server names a running "spectral serve" instance.`,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "base URL of a remote run history (e.g. http://host:8080)")
	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsDeleteCommand())
	cmd.AddCommand(newRunsExportCommand())
	return cmd
}

// runHistory is the part of the run history shared by the local database and
// a remote server.
type runHistory interface {
	ListRuns(ctx context.Context, limit int) ([]*db.Run, error)
	GetRun(ctx context.Context, id string) (*api.RunDetail, error)
	DeleteRun(ctx context.Context, id string) error
}

type localHistory struct {
	store *db.RunStore
}

func (h localHistory) ListRuns(_ context.Context, limit int) ([]*db.Run, error) {
	return h.store.List(limit)
}

func (h localHistory) GetRun(_ context.Context, id string) (*api.RunDetail, error) {
	run, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	outs, err := h.store.Outputs(run.RunID)
	if err != nil {
		return nil, err
	}
	return &api.RunDetail{Run: run, Outputs: outs}, nil
}

func (h localHistory) DeleteRun(_ context.Context, id string) error {
	return h.store.Delete(id)
}

// withHistory runs fn against --server when set, else the local database.
func withHistory(fn func(h runHistory) error) error {
	if serverURL != "" {
		return fn(api.NewClient(serverURL, remoteHTTP))
	}
	return withStore(func(store *db.RunStore) error {
		return fn(localHistory{store: store})
	})
}

// withStore opens the history database for the runs subcommands, which need
// it regardless of --no-record.
func withStore(fn func(store *db.RunStore) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	database, err := db.NewDB(resolveDBPath(cfg))
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer database.Close()
	return fn(db.NewRunStore(database, nil))
}

func newRunsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h runHistory) error {
				runs, err := h.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")
	return cmd
}

func printRuns(w io.Writer, runs []*db.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tCREATED\tSCENES\tINDICES\tCHANGED")
	for _, r := range runs {
		scenes := r.BeforeScene
		indices := r.FamilyAIndex
		changed := "-"
		if r.Kind == db.KindChange {
			scenes += " > " + r.AfterScene
			indices += "/" + r.FamilyBIndex
			changed = fmt.Sprintf("%d", r.Tally.AOnly+r.Tally.BOnly+r.Tally.Both)
		}
		created := time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.RunID, r.Kind, created, scenes, indices, changed)
	}
	tw.Flush()
}

func newRunsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a run and its outputs as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h runHistory) error {
				detail, err := h.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			})
		},
	}
	return cmd
}

func newRunsDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete RUN_ID...",
		Short: "Delete runs from the history (output files are kept)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(h runHistory) error {
				for _, id := range args {
					if err := h.DeleteRun(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
	return cmd
}

func newRunsExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Re-create a change run's category grid from the history",
		Long: `Decode the category grid stored with a change run and write it as a
GeoTIFF (.tif), an ESRI ASCII grid (.asc) or a PNG change map (.png), chosen
by the --out extension. The stored grid carries no georeferencing, so the
exported raster uses a unit cell size at the origin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *db.RunStore) error {
				run, err := store.Get(args[0])
				if err != nil {
					return err
				}
				cats, err := store.Categories(run.RunID)
				if err != nil {
					return err
				}
				switch ext := strings.ToLower(filepath.Ext(out)); {
				case ext == ".png":
					f, err := files.Create(out)
					if err != nil {
						return err
					}
					labels := render.CategoryLabels(spectral.Name(run.FamilyAIndex), spectral.Name(run.FamilyBIndex))
					title := fmt.Sprintf("%s to %s", run.BeforeScene, run.AfterScene)
					if err := render.ChangeMapPNG(f, cats, title, labels, render.DefaultSize); err != nil {
						f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
				case bandio.IsWritable(out):
					s := cats.Shape()
					profile := raster.Profile{
						Width:     s.Cols,
						Height:    s.Rows,
						Transform: [6]float64{0, 1, 0, float64(s.Rows), 0, -1},
						CellSize:  1,
						Tags:      map[string]string{"run_id": run.RunID},
					}
					if err := bandio.WriteCategories(files, out, cats, profile); err != nil {
						return err
					}
				default:
					return fmt.Errorf("export target %q must end in .tif, .asc or .png: %w", out, raster.ErrConfiguration)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "change.tif", "output file (.tif, .asc or .png)")
	return cmd
}
