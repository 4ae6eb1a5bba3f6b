package borders

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// LoadShapefileZip extracts a zipped shapefile bundle into a temporary
// directory and loads the first .shp it contains. The .dbf and .shx must
// sit next to it in the archive.
func LoadShapefileZip(path string) (*geojson.FeatureCollection, error) {
	dir, err := os.MkdirTemp("", "borders-shp-")
	if err != nil {
		return nil, eris.Wrap(err, "borders: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if err := extractZIP(path, dir); err != nil {
		return nil, eris.Wrapf(err, "borders: extract %s", path)
	}
	shpPath, err := findFileByExt(dir, ".shp")
	if err != nil {
		return nil, eris.Wrapf(err, "borders: %s", path)
	}
	return LoadShapefile(shpPath)
}

// extractZIP flattens every file of the archive into destDir.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Base strips any directory component, including "../".
		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extractFile(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", destPath)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return eris.Wrapf(out.Close(), "close %s", destPath)
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found", ext)
}
