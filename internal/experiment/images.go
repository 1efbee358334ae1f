package experiment

import (
	"errors"
	"fmt"
	"math/rand"

	"foodval-go/internal/models"
)

// ErrNotEnoughImages is returned when a source directory cannot cover the configured counts.
var ErrNotEnoughImages = errors.New("not enough images")

// ImageSource lists the image filenames in a named directory. The listing is
// treated as exhaustive and its order as meaningless.
type ImageSource interface {
	Images(dir string) []string
}

// ImageSets holds the per-phase image sequences in presentation order.
type ImageSets struct {
	Phase1 []models.Image
	Phase2 []models.Image
}

// BuildImageSets draws the Phase 1 and Phase 2 images for one session.
//
// Phase 1 takes largeCount+smallCount files from old-images. Phase 2 reuses the
// first oldImagesCount entries of the shuffled Phase 1 sequence and adds
// newImagesCount files from the configured new-image directory, all at medium
// size.
func BuildImageSets(cfg models.ExperimentConfig, source ImageSource, r *rand.Rand) (*ImageSets, error) {
	oldFiles := Shuffle(r, source.Images(models.OldImagesDir))
	if need := cfg.Phase1Total(); len(oldFiles) < need {
		return nil, fmt.Errorf("%w: %s has %d, phase 1 needs %d", ErrNotEnoughImages, models.OldImagesDir, len(oldFiles), need)
	}
	if cfg.Phase2.OldImagesCount > cfg.Phase1Total() {
		return nil, fmt.Errorf("%w: phase 2 reuses %d old images but phase 1 shows %d", ErrNotEnoughImages, cfg.Phase2.OldImagesCount, cfg.Phase1Total())
	}

	phase1 := make([]models.Image, 0, cfg.Phase1Total())
	for i := 0; i < cfg.Phase1.LargeCount; i++ {
		phase1 = append(phase1, models.Image{ID: i + 1, Filename: oldFiles[i], Size: models.SizeLarge, Phase: 1})
	}
	for i := 0; i < cfg.Phase1.SmallCount; i++ {
		idx := cfg.Phase1.LargeCount + i
		phase1 = append(phase1, models.Image{ID: idx + 1, Filename: oldFiles[idx], Size: models.SizeSmall, Phase: 1})
	}
	phase1 = Shuffle(r, phase1)

	phase2 := make([]models.Image, 0, cfg.Phase2Total())
	for i := 0; i < cfg.Phase2.OldImagesCount; i++ {
		phase2 = append(phase2, phase1[i].AsPhase2Old())
	}

	newDir := cfg.NewImageDir()
	newFiles := Shuffle(r, source.Images(newDir))
	if len(newFiles) < cfg.Phase2.NewImagesCount {
		return nil, fmt.Errorf("%w: %s has %d, phase 2 needs %d", ErrNotEnoughImages, newDir, len(newFiles), cfg.Phase2.NewImagesCount)
	}
	nextID := maxID(phase1) + 1
	for i := 0; i < cfg.Phase2.NewImagesCount; i++ {
		phase2 = append(phase2, models.Image{ID: nextID + i, Filename: newFiles[i], Size: models.SizeMedium, Phase: 2})
	}

	return &ImageSets{Phase1: phase1, Phase2: Shuffle(r, phase2)}, nil
}

func maxID(images []models.Image) int {
	m := 0
	for _, img := range images {
		if img.ID > m {
			m = img.ID
		}
	}
	return m
}
