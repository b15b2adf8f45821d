package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/spectral.report/internal/api"
	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	var (
		listen string
		roots  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history over HTTP",
		Long: `Serve the run history as a JSON API:

  GET    /api/runs                   recent runs (?limit=N)
  GET    /api/runs/{id}              one run and its outputs
  DELETE /api/runs/{id}              forget a run
  GET    /api/runs/{id}/change.png   change map from the stored categories
  GET    /api/runs/{id}/outputs/{n}  the n-th output file of a run
  GET    /api/indices                the index library

Output files are only served from the --root directories.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			lib, err := spectral.NewLibrary(cfg.LibraryOptions())
			if err != nil {
				return err
			}
			database, err := db.NewDB(resolveDBPath(cfg))
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer database.Close()

			absRoots := make([]string, len(roots))
			for i, r := range roots {
				if absRoots[i], err = filepath.Abs(r); err != nil {
					return err
				}
			}
			server := api.NewServer(db.NewRunStore(database, nil), lib, absRoots...)
			srv := &http.Server{
				Addr:              listen,
				Handler:           api.LoggingMiddleware(server.ServeMux()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serveUntilDone(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&roots, "root", []string{"out"}, "directories output files may be served from")
	return cmd
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Serving run history on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
