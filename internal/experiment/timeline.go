package experiment

import (
	"errors"
	"fmt"

	"foodval-go/internal/models"
)

// ErrInvalidPositions is returned for attention positions that are repeated or out of range.
var ErrInvalidPositions = errors.New("invalid attention check positions")

type StepKind int

const (
	StepImage StepKind = iota
	StepAttention
)

func (k StepKind) String() string {
	if k == StepAttention {
		return "attention"
	}
	return "image"
}

// Step is one entry of a timeline. Image is set for StepImage,
// AttentionIndex for StepAttention.
type Step struct {
	Kind           StepKind
	Image          models.Image
	AttentionIndex int
}

// Timeline is the ordered step sequence of one phase.
type Timeline struct {
	Phase  int
	Steps  []Step
	Images int
}

// Len is the number of steps.
func (t *Timeline) Len() int {
	return len(t.Steps)
}

// ImageNumber is the 1-based count of image steps up to and including step i.
func (t *Timeline) ImageNumber(i int) int {
	n := 0
	for j := 0; j <= i && j < len(t.Steps); j++ {
		if t.Steps[j].Kind == StepImage {
			n++
		}
	}
	return n
}

// CheckPositions validates 1-based attention positions against n images.
func CheckPositions(positions []int, n int) error {
	seen := make(map[int]bool, len(positions))
	for _, p := range positions {
		if p < 1 || p > n {
			return fmt.Errorf("%w: %d is outside 1..%d", ErrInvalidPositions, p, n)
		}
		if seen[p] {
			return fmt.Errorf("%w: %d appears twice", ErrInvalidPositions, p)
		}
		seen[p] = true
	}
	return nil
}

// BuildTimeline emits an image step for every image and, directly after image
// i (1-based), an attention step when i is listed in positions. Attention steps
// carry a phase-local index counting up from 0.
func BuildTimeline(phase int, images []models.Image, positions []int) (*Timeline, error) {
	if err := CheckPositions(positions, len(images)); err != nil {
		return nil, err
	}
	insertAfter := make(map[int]bool, len(positions))
	for _, p := range positions {
		insertAfter[p] = true
	}

	t := &Timeline{
		Phase:  phase,
		Steps:  make([]Step, 0, len(images)+len(positions)),
		Images: len(images),
	}
	attention := 0
	for i, img := range images {
		t.Steps = append(t.Steps, Step{Kind: StepImage, Image: img})
		if insertAfter[i+1] {
			t.Steps = append(t.Steps, Step{Kind: StepAttention, AttentionIndex: attention})
			attention++
		}
	}
	return t, nil
}

// QuestionIndex maps a phase-local attention index onto the shared question bank.
func QuestionIndex(phase, local int) int {
	if phase == 2 {
		return models.Phase1QuestionSlots + local
	}
	return local
}
