package bandio

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/spectral.report/internal/fsutil"
	"github.com/banshee-data/spectral.report/internal/pipeline"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
)

// LoadScene reads every raster file in dir (.jp2, .tif, .tiff, .asc) whose
// base name resolves to a band role: either a role name ("red.tif") or a
// Sentinel-2 band name ("B04.jp2", "T36QUL_20240227T082911_B04_10m.jp2").
// Files that name no band are ignored; two files resolving to the same role
// are an error.
func LoadScene(fsys fsutil.FileSystem, dir string) (pipeline.Scene, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return pipeline.Scene{}, fmt.Errorf("list scene: %w", err)
	}
	files := map[spectral.Band]string{}
	for _, e := range entries {
		if e.IsDir() || !IsRasterFile(e.Name()) {
			continue
		}
		band, ok := bandFromFileName(e.Name())
		if !ok {
			continue
		}
		if prev, dup := files[band]; dup {
			return pipeline.Scene{}, fmt.Errorf("scene %s: %s and %s both map to %s: %w",
				dir, filepath.Base(prev), e.Name(), band, raster.ErrConfiguration)
		}
		files[band] = filepath.Join(dir, e.Name())
	}
	if len(files) == 0 {
		return pipeline.Scene{}, fmt.Errorf("scene %s: no band files: %w", dir, raster.ErrConfiguration)
	}
	return ReadScene(fsys, filepath.Base(filepath.Clean(dir)), files)
}

// ReadScene reads an explicit role-to-path binding. All bands must share a
// shape; the scene profile is taken from the first band in role order with
// Count set to the number of bands.
func ReadScene(fsys fsutil.FileSystem, name string, files map[spectral.Band]string) (pipeline.Scene, error) {
	roles := make([]string, 0, len(files))
	for b := range files {
		roles = append(roles, string(b))
	}
	sort.Strings(roles)

	scene := pipeline.Scene{Name: name, Bands: spectral.Bands{}}
	var shapes []raster.Shaped
	for i, r := range roles {
		band := spectral.Band(r)
		g, prof, err := ReadBand(fsys, files[band])
		if err != nil {
			return pipeline.Scene{}, err
		}
		if i == 0 {
			scene.Profile = prof
		}
		scene.Bands[band] = g
		shapes = append(shapes, g)
	}
	if err := raster.CheckShapes("scene "+name, shapes...); err != nil {
		return pipeline.Scene{}, err
	}
	scene.Profile.Count = len(roles)
	return scene, nil
}

// bandFromFileName resolves the band role encoded in a file name. The whole
// stem is tried first, then each "_"-separated token from the right.
func bandFromFileName(name string) (spectral.Band, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if b, err := spectral.ParseBand(stem); err == nil {
		return b, true
	}
	parts := strings.Split(stem, "_")
	for i := len(parts) - 1; i >= 0; i-- {
		if b, ok := spectral.Sentinel2[strings.ToUpper(parts[i])]; ok {
			return b, true
		}
	}
	return "", false
}
