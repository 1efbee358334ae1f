// Package assets lists experiment images on disk and checks that they can be served.
package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DirCatalog lists the image files found in <Root>/<dir>.
type DirCatalog struct {
	Root string
	Log  *zap.Logger
}

// Images returns the image filenames in dir. A missing or unreadable
// directory yields an empty listing.
func (c DirCatalog) Images(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(c.Root, dir))
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("Could not list image directory", zap.String("dir", dir), zap.Error(err))
		}
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}

// StaticCatalog is a fixed directory → filenames listing.
type StaticCatalog map[string][]string

func (c StaticCatalog) Images(dir string) []string {
	return c[dir]
}
