// experiment.go
package models

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidExperiment is returned when an experiment document fails validation.
var ErrInvalidExperiment = errors.New("invalid experiment configuration")

const (
	// AttentionQuestionCount is the size of the shared attention-check bank.
	AttentionQuestionCount = 5
	// Phase1QuestionSlots is how many bank entries are reserved for Phase 1.
	Phase1QuestionSlots = 2
	// Phase2QuestionSlots is how many bank entries are reserved for Phase 2.
	Phase2QuestionSlots = AttentionQuestionCount - Phase1QuestionSlots

	OldImagesDir = "old-images"
	NewImagesDir = "new-images"
)

// Experiment is the full document: counts, positions, sizes and the question bank.
type Experiment struct {
	Config                  ExperimentConfig    `yaml:"experimentConfig"`
	AttentionCheckQuestions []AttentionQuestion `yaml:"attentionCheckQuestions"`
}

// ExperimentConfig matches the experimentConfig block of config.json
type ExperimentConfig struct {
	Phase1               Phase1Config          `yaml:"phase1"`
	Phase2               Phase2Config          `yaml:"phase2"`
	AttentionChecks      AttentionChecksConfig `yaml:"attentionChecks"`
	ImageSizes           ImageSizes            `yaml:"imageSizes"`
	ImageDisplayDuration int                   `yaml:"imageDisplayDuration"` // milliseconds
}

type Phase1Config struct {
	LargeCount int `yaml:"largeCount"`
	SmallCount int `yaml:"smallCount"`
}

type Phase2Config struct {
	OldImagesCount int    `yaml:"oldImagesCount"`
	NewImagesCount int    `yaml:"newImagesCount"`
	NewImageSource string `yaml:"newImageSource"`
}

type AttentionChecksConfig struct {
	Phase1 PositionsConfig `yaml:"phase1"`
	Phase2 PositionsConfig `yaml:"phase2"`
}

// PositionsConfig lists 1-based image positions after which a check is shown.
type PositionsConfig struct {
	Positions []int `yaml:"positions"`
}

// ImageSizes maps each Size to a CSS length such as "520px".
type ImageSizes struct {
	Large  string `yaml:"large"`
	Small  string `yaml:"small"`
	Medium string `yaml:"medium"`
}

// For returns the display size configured for s.
func (s ImageSizes) For(size Size) string {
	switch size {
	case SizeLarge:
		return s.Large
	case SizeSmall:
		return s.Small
	default:
		return s.Medium
	}
}

// AttentionQuestion struct to match the question objects in the document
type AttentionQuestion struct {
	ID            string   `yaml:"id"`
	Prompt        string   `yaml:"prompt"`
	Instruction   string   `yaml:"instruction"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correct_answer"`
}

// HasOption reports whether v is one of the question's options.
func (q AttentionQuestion) HasOption(v string) bool {
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Phase1Total is the number of images shown in Phase 1.
func (c ExperimentConfig) Phase1Total() int {
	return c.Phase1.LargeCount + c.Phase1.SmallCount
}

// Phase2Total is the number of images shown in Phase 2.
func (c ExperimentConfig) Phase2Total() int {
	return c.Phase2.OldImagesCount + c.Phase2.NewImagesCount
}

// NewImageDir is the catalog directory Phase 2 draws new images from.
func (c ExperimentConfig) NewImageDir() string {
	if c.Phase2.NewImageSource == "" {
		return NewImagesDir
	}
	return c.Phase2.NewImageSource
}

// LoadExperiment reads and parses an experiment document. JSON is valid input.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}

	var experiment Experiment
	if err := yaml.Unmarshal(data, &experiment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experiment document: %w", err)
	}

	if err := experiment.Validate(); err != nil {
		return nil, err
	}
	return &experiment, nil
}

// Validate checks the document against the invariants the engine relies on.
func (e *Experiment) Validate() error {
	c := e.Config
	if c.Phase1.LargeCount < 0 || c.Phase1.SmallCount < 0 || c.Phase2.OldImagesCount < 0 || c.Phase2.NewImagesCount < 0 {
		return invalid("image counts must not be negative")
	}
	if c.Phase2.OldImagesCount > c.Phase1Total() {
		return invalid("phase2.oldImagesCount %d exceeds the %d phase 1 images", c.Phase2.OldImagesCount, c.Phase1Total())
	}
	if c.ImageDisplayDuration <= 0 {
		return invalid("imageDisplayDuration must be positive")
	}
	if c.ImageSizes.Large == "" || c.ImageSizes.Small == "" || c.ImageSizes.Medium == "" {
		return invalid("imageSizes must define large, small and medium")
	}
	if err := validatePositions("phase1", c.AttentionChecks.Phase1.Positions, c.Phase1Total(), Phase1QuestionSlots); err != nil {
		return err
	}
	if err := validatePositions("phase2", c.AttentionChecks.Phase2.Positions, c.Phase2Total(), Phase2QuestionSlots); err != nil {
		return err
	}

	if len(e.AttentionCheckQuestions) != AttentionQuestionCount {
		return invalid("expected %d attention check questions, got %d", AttentionQuestionCount, len(e.AttentionCheckQuestions))
	}
	for i, q := range e.AttentionCheckQuestions {
		if len(q.Options) == 0 {
			return invalid("attention question %d has no options", i)
		}
		if !q.HasOption(q.CorrectAnswer) {
			return invalid("attention question %d: correct_answer %q is not an option", i, q.CorrectAnswer)
		}
	}
	return nil
}

func validatePositions(phase string, positions []int, images, slots int) error {
	if len(positions) > slots {
		return invalid("%s has %d attention positions but only %d questions are reserved", phase, len(positions), slots)
	}
	seen := make(map[int]bool, len(positions))
	for _, p := range positions {
		if p < 1 || p > images {
			return invalid("%s attention position %d outside 1..%d", phase, p, images)
		}
		if seen[p] {
			return invalid("%s attention position %d is repeated", phase, p)
		}
		seen[p] = true
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidExperiment, fmt.Sprintf(format, args...))
}
