// Package api serves the run history over HTTP: run listings and details as
// JSON, change maps rendered from stored category grids, and the artefact
// files a run wrote.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/spectral.report/internal/db"
	"github.com/banshee-data/spectral.report/internal/httputil"
	"github.com/banshee-data/spectral.report/internal/monitoring"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/render"
	"github.com/banshee-data/spectral.report/internal/security"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultListLimit caps GET /api/runs when no limit is given.
const DefaultListLimit = 50

// RunDetail is a run together with the files it wrote.
type RunDetail struct {
	*db.Run
	Outputs []db.Output `json:"outputs"`
}

// IndexInfo describes one library entry for GET /api/indices.
type IndexInfo struct {
	Name        spectral.Name `json:"name"`
	Description string        `json:"description"`
	Bands       []string      `json:"bands"`
	Unit        string        `json:"unit,omitempty"`
	Bounded     bool          `json:"bounded"`
}

type Server struct {
	store *db.RunStore
	lib   *spectral.Library
	// roots are the directories output files may be served from.
	roots []string
	// changeMapPNG renders GET /api/runs/{id}/change.png.
	changeMapPNG func(w io.Writer, cats *raster.CategoryGrid, title string, labels []string, size render.Size) error
}

// NewServer creates a Server. Output files are only served when they resolve
// inside one of roots.
func NewServer(store *db.RunStore, lib *spectral.Library, roots ...string) *Server {
	if lib == nil {
		lib = spectral.Default
	}
	return &Server{store: store, lib: lib, roots: roots, changeMapPNG: render.ChangeMapPNG}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/change.png", s.changeMap)
	mux.HandleFunc("GET /api/runs/{id}/outputs/{n}", s.outputFile)
	mux.HandleFunc("GET /api/indices", s.listIndices)
	return mux
}

// writeStoreError maps run store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	runs, err := s.store.List(limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	outs, err := s.store.Outputs(run.RunID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if outs == nil {
		outs = []db.Output{}
	}
	httputil.WriteJSONOK(w, RunDetail{Run: run, Outputs: outs})
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) changeMap(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	cats, err := s.store.Categories(run.RunID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	labels := render.CategoryLabels(spectral.Name(run.FamilyAIndex), spectral.Name(run.FamilyBIndex))
	title := fmt.Sprintf("%s to %s", run.BeforeScene, run.AfterScene)
	var buf bytes.Buffer
	if err := s.changeMapPNG(&buf, cats, title, labels, render.DefaultSize); err != nil {
		monitoring.Logf("render change map for %s: %v", run.RunID, err)
		httputil.InternalServerError(w, "Failed to render change map")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		monitoring.Logf("write change map for %s: %v", run.RunID, err)
	}
}

func (s *Server) outputFile(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		httputil.BadRequest(w, "Invalid output number")
		return
	}
	outs, err := s.store.Outputs(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if n >= len(outs) {
		httputil.NotFound(w, fmt.Sprintf("run has %d outputs", len(outs)))
		return
	}
	path := outs[n].Path
	if err := security.ValidatePathWithinAllowedDirs(path, s.roots); err != nil {
		httputil.Forbidden(w, "output is outside the served directories")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) listIndices(w http.ResponseWriter, r *http.Request) {
	var infos []IndexInfo
	for _, name := range s.lib.Names() {
		def, err := s.lib.Lookup(string(name))
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		bands := make([]string, len(def.Bands))
		for i, b := range def.Bands {
			bands[i] = string(b)
		}
		infos = append(infos, IndexInfo{
			Name:        name,
			Description: def.Description,
			Bands:       bands,
			Unit:        def.Unit,
			Bounded:     def.Bound != nil,
		})
	}
	httputil.WriteJSONOK(w, infos)
}
