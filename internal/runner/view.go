package runner

import (
	"fmt"

	"foodval-go/internal/assets"
	"foodval-go/internal/experiment"
)

// Screen names sent to the browser.
const (
	ScreenInstructions = "instructions"
	ScreenImage        = "image"
	ScreenAttention    = "attention"
	ScreenQuestion     = "question"
	ScreenComplete     = "complete"
)

// Prompt is an attention question as shown to the participant. The correct
// answer never leaves the server.
type Prompt struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Instruction string   `json:"instruction,omitempty"`
	Options     []string `json:"options"`
}

// View is the screen currently shown to a participant.
type View struct {
	Screen            string  `json:"screen"`
	Phase             int     `json:"phase,omitempty"`
	ImageID           int     `json:"image_id,omitempty"`
	ImageURL          string  `json:"image_url,omitempty"`
	DisplaySize       string  `json:"display_size,omitempty"`
	Progress          string  `json:"progress,omitempty"`
	Question          *Prompt `json:"question,omitempty"`
	InitialPayment    *int    `json:"initial_payment,omitempty"`
	InitialConfidence *int    `json:"initial_confidence,omitempty"`
	Alert             string  `json:"alert,omitempty"`
}

// ViewRenderer implements experiment.Renderer by keeping the latest screen.
// Like the driver it is only touched from the run's loop.
type ViewRenderer struct {
	manifest    *assets.Manifest
	placeholder string
	view        View
}

func NewViewRenderer(manifest *assets.Manifest, placeholder string) *ViewRenderer {
	return &ViewRenderer{manifest: manifest, placeholder: placeholder}
}

// Current returns a copy of the screen on display.
func (r *ViewRenderer) Current() View {
	return r.view
}

func (r *ViewRenderer) clearAlert() {
	r.view.Alert = ""
}

func (r *ViewRenderer) Instructions(phase int) {
	r.view = View{Screen: ScreenInstructions, Phase: phase}
}

func (r *ViewRenderer) ImageView(v experiment.ImageView) {
	r.view = View{
		Screen:      ScreenImage,
		Phase:       1,
		ImageID:     v.Image.ID,
		ImageURL:    assets.URL(r.manifest, v.Dir, v.Image.Filename, r.placeholder),
		DisplaySize: v.DisplaySize,
		Progress:    progress(v.Number, v.Total),
	}
}

func (r *ViewRenderer) AttentionCheck(v experiment.AttentionView) {
	q := v.Question
	r.view = View{
		Screen: ScreenAttention,
		Phase:  v.Phase,
		Question: &Prompt{
			ID:          q.ID,
			Prompt:      q.Prompt,
			Instruction: q.Instruction,
			Options:     append([]string(nil), q.Options...),
		},
	}
}

func (r *ViewRenderer) Phase2Question(v experiment.QuestionView) {
	payment, confidence := v.InitialPayment, v.InitialConfidence
	r.view = View{
		Screen:            ScreenQuestion,
		Phase:             2,
		ImageID:           v.Image.ID,
		ImageURL:          assets.URL(r.manifest, v.Dir, v.Image.Filename, r.placeholder),
		DisplaySize:       v.DisplaySize,
		Progress:          progress(v.Number, v.Total),
		InitialPayment:    &payment,
		InitialConfidence: &confidence,
	}
}

func (r *ViewRenderer) Alert(msg string) {
	r.view.Alert = msg
}

func (r *ViewRenderer) Complete() {
	r.view = View{Screen: ScreenComplete}
}

func progress(n, total int) string {
	return fmt.Sprintf("Image %d of %d", n, total)
}
