package models

// Size is the display size category of an image.
type Size string

const (
	SizeLarge  Size = "large"
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
)

// Image is one food image as it appears in a phase.
type Image struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Size     Size   `json:"size"`
	Phase    int    `json:"phase"`
	IsOld    bool   `json:"isOld,omitempty"`
}

// Dir is the catalog directory the image file lives in.
func (img Image) Dir(newImageDir string) string {
	if img.Phase == 1 || img.IsOld {
		return OldImagesDir
	}
	return newImageDir
}

// AsPhase2Old copies a Phase 1 image into Phase 2. The original size is
// overwritten, so callers that need it must keep it elsewhere.
func (img Image) AsPhase2Old() Image {
	img.Size = SizeMedium
	img.Phase = 2
	img.IsOld = true
	return img
}
