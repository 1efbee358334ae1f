package assets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"foodval-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress is called after each image is checked, successful or not.
type Progress func(loaded, total int)

// Manifest records which image paths could be opened.
type Manifest struct {
	mu     sync.RWMutex
	ok     map[string]bool
	Total  int
	Failed int
}

// Available reports whether the image at rel (e.g. "old-images/x.jpg") loaded.
func (m *Manifest) Available(rel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ok[rel]
}

// Paths collects the unique relative paths used by both phases.
func Paths(phase1, phase2 []models.Image, newImageDir string) []string {
	seen := map[string]bool{}
	var paths []string
	for _, img := range append(append([]models.Image{}, phase1...), phase2...) {
		p := path.Join(img.Dir(newImageDir), img.Filename)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

// Preload opens every image under root with up to workers checks in flight.
// A failed image is logged and still counts towards progress; the experiment
// never waits on it. Only context cancellation stops the preload early.
func Preload(ctx context.Context, log *zap.Logger, root string, paths []string, workers int, progress Progress) (*Manifest, error) {
	m := &Manifest{ok: make(map[string]bool, len(paths)), Total: len(paths)}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	loaded := 0
	for _, rel := range paths {
		rel := rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := checkImage(filepath.Join(root, filepath.FromSlash(rel)))

			m.mu.Lock()
			m.ok[rel] = err == nil
			if err != nil {
				m.Failed++
			}
			m.mu.Unlock()
			if err != nil {
				log.Warn("Failed to load image", zap.String("path", rel), zap.Error(err))
			}

			mu.Lock()
			defer mu.Unlock()
			loaded++
			if progress != nil {
				progress(loaded, len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("Image preloading completed",
		zap.Int("total", m.Total),
		zap.Int("loaded", m.Total-m.Failed),
	)
	return m, nil
}

func checkImage(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%s is not an image file", p)
	}
	return nil
}

// URL returns the public URL for an image, or placeholder when it failed to load.
func URL(m *Manifest, dir, filename, placeholder string) string {
	rel := path.Join(dir, filename)
	if m != nil && !m.Available(rel) {
		return placeholder
	}
	return "/images/" + dir + "/" + url.PathEscape(filename)
}
