package experiment

import (
	"fmt"
	"time"

	"foodval-go/internal/models"
)

type staticSource map[string][]string

func (s staticSource) Images(dir string) []string {
	return s[dir]
}

func filenames(prefix string, n int) []string {
	files := make([]string, n)
	for i := range files {
		files[i] = fmt.Sprintf("%s-%02d.jpg", prefix, i+1)
	}
	return files
}

func testSource(oldFiles, newFiles int) staticSource {
	return staticSource{
		models.OldImagesDir: filenames("old", oldFiles),
		models.NewImagesDir: filenames("new", newFiles),
	}
}

func testExperiment(large, small, old, fresh int, p1, p2 []int) *models.Experiment {
	questions := make([]models.AttentionQuestion, models.AttentionQuestionCount)
	for i := range questions {
		questions[i] = models.AttentionQuestion{
			ID:            fmt.Sprintf("ac%d", i+1),
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Instruction:   "Select A.",
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: "A",
		}
	}
	return &models.Experiment{
		Config: models.ExperimentConfig{
			Phase1: models.Phase1Config{LargeCount: large, SmallCount: small},
			Phase2: models.Phase2Config{OldImagesCount: old, NewImagesCount: fresh, NewImageSource: models.NewImagesDir},
			AttentionChecks: models.AttentionChecksConfig{
				Phase1: models.PositionsConfig{Positions: p1},
				Phase2: models.PositionsConfig{Positions: p2},
			},
			ImageSizes:           models.ImageSizes{Large: "700px", Small: "300px", Medium: "520px"},
			ImageDisplayDuration: 3000,
		},
		AttentionCheckQuestions: questions,
	}
}

// fakeClock fires timers only when Advance moves past their deadline.
type fakeClock struct {
	now    time.Time
	timers []fakeTimer
}

type fakeTimer struct {
	at time.Time
	f  func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 7, 30, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) {
	c.timers = append(c.timers, fakeTimer{at: c.now.Add(d), f: f})
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for {
		fired := false
		for i, t := range c.timers {
			if !t.at.After(c.now) {
				c.timers = append(c.timers[:i], c.timers[i+1:]...)
				t.f()
				fired = true
				break
			}
		}
		if !fired {
			return
		}
	}
}

func (c *fakeClock) Pending() int {
	return len(c.timers)
}

// recordingRenderer keeps every screen the driver asked for.
type recordingRenderer struct {
	last         string
	instructions []int
	images       []ImageView
	attention    []AttentionView
	questions    []QuestionView
	alerts       []string
	completed    bool
}

func (r *recordingRenderer) Instructions(phase int) {
	r.last = "instructions"
	r.instructions = append(r.instructions, phase)
}

func (r *recordingRenderer) ImageView(v ImageView) {
	r.last = "image"
	r.images = append(r.images, v)
}

func (r *recordingRenderer) AttentionCheck(v AttentionView) {
	r.last = "attention"
	r.attention = append(r.attention, v)
}

func (r *recordingRenderer) Phase2Question(v QuestionView) {
	r.last = "question"
	r.questions = append(r.questions, v)
}

func (r *recordingRenderer) Alert(msg string) {
	r.alerts = append(r.alerts, msg)
}

func (r *recordingRenderer) Complete() {
	r.last = "complete"
	r.completed = true
}
