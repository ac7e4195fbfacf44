package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileSidecars are the companion files extracted alongside a .shp entry.
// The .dbf carries attributes, the .shx the record index, .prj and .cpg the
// projection and code page.
var shapefileSidecars = []string{".dbf", ".shx", ".prj", ".cpg"}

// ExtractShapefile extracts the shapefile bundle from a ZIP archive and
// returns the path of the extracted .shp. The archive must contain exactly
// one .shp entry. Sidecar files sharing its base name are extracted next to
// it when the archive has them; everything else is skipped.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var shpEntries []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(filepath.Ext(f.Name), ".shp") {
			shpEntries = append(shpEntries, f)
		}
	}
	if len(shpEntries) == 0 {
		return "", eris.Errorf("zip: no .shp entry in %s", filepath.Base(zipPath))
	}
	if len(shpEntries) > 1 {
		return "", eris.Errorf("zip: expected exactly 1 .shp entry, got %d", len(shpEntries))
	}

	shpEntry := shpEntries[0]
	shpPath, err := extractZIPEntry(shpEntry, destDir)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(shpEntry.Name, filepath.Ext(shpEntry.Name))
	for _, f := range r.File {
		ext := filepath.Ext(f.Name)
		if !isSidecarExt(ext) {
			continue
		}
		if !strings.EqualFold(strings.TrimSuffix(f.Name, ext), base) {
			continue
		}
		if _, err := extractZIPEntry(f, destDir); err != nil {
			return "", err
		}
	}

	return shpPath, nil
}

func isSidecarExt(ext string) bool {
	for _, s := range shapefileSidecars {
		if strings.EqualFold(ext, s) {
			return true
		}
	}
	return false
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
