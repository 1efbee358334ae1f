package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experimentJSON = `{
  "experimentConfig": {
    "phase1": {"largeCount": 2, "smallCount": 1},
    "phase2": {"oldImagesCount": 1, "newImagesCount": 1, "newImageSource": "new-images"},
    "attentionChecks": {"phase1": {"positions": [2]}, "phase2": {"positions": [1]}},
    "imageSizes": {"large": "700px", "small": "300px", "medium": "520px"},
    "imageDisplayDuration": 3000
  },
  "attentionCheckQuestions": [
    {"id": "q1", "prompt": "p", "instruction": "i", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "q2", "prompt": "p", "instruction": "i", "options": ["A", "B"], "correct_answer": "B"},
    {"id": "q3", "prompt": "p", "instruction": "i", "options": ["A, or not", "B"], "correct_answer": "A, or not"},
    {"id": "q4", "prompt": "p", "instruction": "i", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "q5", "prompt": "p", "instruction": "i", "options": ["A", "B"], "correct_answer": "B"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExperimentJSON(t *testing.T) {
	exp, err := LoadExperiment(writeFile(t, "config.json", experimentJSON))
	require.NoError(t, err)

	c := exp.Config
	assert.Equal(t, 3, c.Phase1Total())
	assert.Equal(t, 2, c.Phase2Total())
	assert.Equal(t, []int{2}, c.AttentionChecks.Phase1.Positions)
	assert.Equal(t, []int{1}, c.AttentionChecks.Phase2.Positions)
	assert.Equal(t, "520px", c.ImageSizes.For(SizeMedium))
	assert.Equal(t, "700px", c.ImageSizes.For(SizeLarge))
	assert.Equal(t, 3000, c.ImageDisplayDuration)
	require.Len(t, exp.AttentionCheckQuestions, 5)
	assert.Equal(t, "A, or not", exp.AttentionCheckQuestions[2].CorrectAnswer)
}

func TestLoadExperimentYAML(t *testing.T) {
	doc := `
experimentConfig:
  phase1: {largeCount: 1, smallCount: 1}
  phase2: {oldImagesCount: 1, newImagesCount: 0}
  attentionChecks:
    phase1: {positions: []}
    phase2: {positions: []}
  imageSizes: {large: 1px, small: 1px, medium: 1px}
  imageDisplayDuration: 10
attentionCheckQuestions:
  - {id: a, options: [x], correct_answer: x}
  - {id: b, options: [x], correct_answer: x}
  - {id: c, options: [x], correct_answer: x}
  - {id: d, options: [x], correct_answer: x}
  - {id: e, options: [x], correct_answer: x}
`
	exp, err := LoadExperiment(writeFile(t, "experiment.yaml", doc))
	require.NoError(t, err)
	assert.Equal(t, NewImagesDir, exp.Config.NewImageDir())
}

func TestLoadExperimentErrors(t *testing.T) {
	_, err := LoadExperiment(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadExperiment(writeFile(t, "broken.json", `{"experimentConfig": [`))
	assert.Error(t, err)
}

func validExperiment(t *testing.T) *Experiment {
	t.Helper()
	exp, err := LoadExperiment(writeFile(t, "config.json", experimentJSON))
	require.NoError(t, err)
	return exp
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Experiment)
	}{
		{"negative count", func(e *Experiment) { e.Config.Phase1.SmallCount = -1 }},
		{"too many old images", func(e *Experiment) { e.Config.Phase2.OldImagesCount = 4 }},
		{"zero duration", func(e *Experiment) { e.Config.ImageDisplayDuration = 0 }},
		{"missing size", func(e *Experiment) { e.Config.ImageSizes.Medium = "" }},
		{"position past end", func(e *Experiment) { e.Config.AttentionChecks.Phase1.Positions = []int{4} }},
		{"position zero", func(e *Experiment) { e.Config.AttentionChecks.Phase2.Positions = []int{0} }},
		{"repeated position", func(e *Experiment) { e.Config.AttentionChecks.Phase1.Positions = []int{1, 1} }},
		{"too many phase 1 checks", func(e *Experiment) { e.Config.AttentionChecks.Phase1.Positions = []int{1, 2, 3} }},
		{"four questions", func(e *Experiment) { e.AttentionCheckQuestions = e.AttentionCheckQuestions[:4] }},
		{"answer not an option", func(e *Experiment) { e.AttentionCheckQuestions[0].CorrectAnswer = "Z" }},
		{"no options", func(e *Experiment) { e.AttentionCheckQuestions[1].Options = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := validExperiment(t)
			tt.mutate(exp)
			assert.ErrorIs(t, exp.Validate(), ErrInvalidExperiment)
		})
	}
}

func TestImageHelpers(t *testing.T) {
	img := Image{ID: 3, Filename: "x.jpg", Size: SizeLarge, Phase: 1}
	old := img.AsPhase2Old()

	assert.Equal(t, SizeLarge, img.Size, "copy must not touch the original")
	assert.Equal(t, SizeMedium, old.Size)
	assert.Equal(t, 2, old.Phase)
	assert.True(t, old.IsOld)
	assert.Equal(t, OldImagesDir, old.Dir("fresh"))
	assert.Equal(t, "fresh", Image{Phase: 2}.Dir("fresh"))
}
