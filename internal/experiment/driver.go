package experiment

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"foodval-go/internal/models"

	"go.uber.org/zap"
)

// ErrUnexpectedEvent is returned for an event the current step cannot take,
// e.g. a slider move during an attention check. State is left untouched.
var ErrUnexpectedEvent = errors.New("event not accepted by the current step")

const (
	MaxPaymentCents = 400
	MaxConfidence   = 100

	MemoryYes = "yes"
	MemoryNo  = "no"
)

// Messages shown through Renderer.Alert when a confirmation is incomplete.
const (
	MsgSelectAnswer    = "Please select an answer to continue"
	MsgAnswerMemory    = "Please answer whether you have seen this image before"
	MsgSetPayment      = "Please set your payment amount using the slider"
	MsgSetConfidence   = "Please set your confidence level using the slider"
	MsgUnknownOption   = "Please choose one of the listed answers"
	MsgPaymentRange    = "Payment must be between $0.00 and $4.00"
	MsgConfidenceRange = "Confidence must be between 0 and 100"
)

type State int

const (
	StateIdle State = iota
	StatePhase1Instructions
	StatePhase1
	StatePhase2Instructions
	StatePhase2
	StateComplete
)

var stateNames = map[State]string{
	StateIdle:               "idle",
	StatePhase1Instructions: "phase1_instructions",
	StatePhase1:             "phase1",
	StatePhase2Instructions: "phase2_instructions",
	StatePhase2:             "phase2",
	StateComplete:           "complete",
}

func (s State) String() string {
	return stateNames[s]
}

// Renderer draws what the driver asks for. Each call replaces the previous screen.
type Renderer interface {
	Instructions(phase int)
	ImageView(v ImageView)
	AttentionCheck(v AttentionView)
	Phase2Question(v QuestionView)
	Alert(msg string)
	Complete()
}

// Clock supplies time and a one-shot timer. AfterFunc callbacks must run on
// the same goroutine that drives the Driver.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

// ImageView describes a Phase 1 image on screen.
type ImageView struct {
	Image       models.Image
	Dir         string
	DisplaySize string
	Number      int
	Total       int
}

// AttentionView describes an attention check on screen.
type AttentionView struct {
	Phase         int
	QuestionIndex int
	Question      models.AttentionQuestion
}

// QuestionView describes a Phase 2 image with its three questions.
type QuestionView struct {
	Image             models.Image
	Dir               string
	DisplaySize       string
	Number            int
	Total             int
	InitialPayment    int
	InitialConfidence int
}

// Snapshot is a read-only summary of driver progress.
type Snapshot struct {
	State  State
	Phase  int
	Cursor int
	Steps  int
	Rows   int
}

// Driver walks a session through both phases. It is not safe for concurrent
// use; one goroutine owns it together with its Clock callbacks.
type Driver struct {
	log        *zap.Logger
	experiment *models.Experiment
	images     *ImageSets
	renderer   Renderer
	clock      Clock
	rand       *rand.Rand
	recorder   *Recorder

	state       State
	timeline    *Timeline
	cursor      int
	stepStarted time.Time
	dwelling    bool

	// attention step
	selected    string
	hasSelected bool

	// phase 2 question step
	memory               string
	payment              int
	confidence           int
	memoryAnswered       bool
	paymentInteracted    bool
	confidenceInteracted bool
}

// NewDriver wires a driver for one session. Both phases' attention positions
// are checked up front so the phase transition cannot fail later.
func NewDriver(log *zap.Logger, exp *models.Experiment, images *ImageSets, session Session, renderer Renderer, clock Clock, r *rand.Rand) (*Driver, error) {
	if err := CheckPositions(exp.Config.AttentionChecks.Phase1.Positions, len(images.Phase1)); err != nil {
		return nil, fmt.Errorf("phase 1: %w", err)
	}
	if err := CheckPositions(exp.Config.AttentionChecks.Phase2.Positions, len(images.Phase2)); err != nil {
		return nil, fmt.Errorf("phase 2: %w", err)
	}
	p1, p2 := len(exp.Config.AttentionChecks.Phase1.Positions), len(exp.Config.AttentionChecks.Phase2.Positions)
	if p1 > models.Phase1QuestionSlots || models.Phase1QuestionSlots+p2 > len(exp.AttentionCheckQuestions) {
		return nil, fmt.Errorf("%w: %d question(s) cannot cover %d+%d attention checks", models.ErrInvalidExperiment, len(exp.AttentionCheckQuestions), p1, p2)
	}
	return &Driver{
		log:        log.With(zap.String("session_id", session.ID)),
		experiment: exp,
		images:     images,
		renderer:   renderer,
		clock:      clock,
		rand:       r,
		recorder:   NewRecorder(session, images.Phase1, clock.Now),
	}, nil
}

// Recorder exposes the rows collected so far.
func (d *Driver) Recorder() *Recorder {
	return d.recorder
}

func (d *Driver) State() State {
	return d.state
}

func (d *Driver) Snapshot() Snapshot {
	s := Snapshot{State: d.state, Cursor: d.cursor, Rows: d.recorder.Len()}
	if d.timeline != nil {
		s.Phase = d.timeline.Phase
		s.Steps = d.timeline.Len()
	}
	return s
}

// Start shows the Phase 1 instructions.
func (d *Driver) Start() error {
	if d.state != StateIdle {
		return ErrUnexpectedEvent
	}
	d.state = StatePhase1Instructions
	d.renderer.Instructions(1)
	return nil
}

// Continue leaves an instructions screen and begins that phase.
func (d *Driver) Continue() error {
	switch d.state {
	case StatePhase1Instructions:
		return d.beginPhase(1, d.images.Phase1, d.experiment.Config.AttentionChecks.Phase1.Positions)
	case StatePhase2Instructions:
		return d.beginPhase(2, d.images.Phase2, d.experiment.Config.AttentionChecks.Phase2.Positions)
	default:
		return ErrUnexpectedEvent
	}
}

// SelectOption chooses an answer on an attention check.
func (d *Driver) SelectOption(option string) error {
	step, ok := d.current()
	if !ok || step.Kind != StepAttention {
		return ErrUnexpectedEvent
	}
	if !d.question(step).HasOption(option) {
		d.renderer.Alert(MsgUnknownOption)
		return nil
	}
	d.selected, d.hasSelected = option, true
	return nil
}

// SelectMemory answers "have you seen this image before?".
func (d *Driver) SelectMemory(answer string) error {
	if !d.onPhase2Question() {
		return ErrUnexpectedEvent
	}
	if answer != MemoryYes && answer != MemoryNo {
		d.renderer.Alert(MsgAnswerMemory)
		return nil
	}
	d.memory, d.memoryAnswered = answer, true
	return nil
}

// MovePayment handles a willingness-to-pay slider move, in cents.
func (d *Driver) MovePayment(cents int) error {
	if !d.onPhase2Question() {
		return ErrUnexpectedEvent
	}
	if cents < 0 || cents > MaxPaymentCents {
		d.renderer.Alert(MsgPaymentRange)
		return nil
	}
	d.payment, d.paymentInteracted = cents, true
	return nil
}

// MoveConfidence handles a confidence slider move.
func (d *Driver) MoveConfidence(value int) error {
	if !d.onPhase2Question() {
		return ErrUnexpectedEvent
	}
	if value < 0 || value > MaxConfidence {
		d.renderer.Alert(MsgConfidenceRange)
		return nil
	}
	d.confidence, d.confidenceInteracted = value, true
	return nil
}

// Confirm submits the current question step. Missing input is reported
// through the renderer and the step stays put.
func (d *Driver) Confirm() error {
	step, ok := d.current()
	if !ok {
		return ErrUnexpectedEvent
	}

	switch {
	case step.Kind == StepAttention:
		if !d.hasSelected {
			d.renderer.Alert(MsgSelectAnswer)
			return nil
		}
		d.recorder.RecordAttentionCheck(d.timeline.Phase, d.question(step), d.selected, d.stepStarted)
		d.log.Debug("Attention check recorded",
			zap.Int("phase", d.timeline.Phase),
			zap.Int("question_index", QuestionIndex(d.timeline.Phase, step.AttentionIndex)),
		)
	case d.timeline.Phase == 2:
		switch {
		case !d.memoryAnswered:
			d.renderer.Alert(MsgAnswerMemory)
			return nil
		case !d.paymentInteracted:
			d.renderer.Alert(MsgSetPayment)
			return nil
		case !d.confidenceInteracted:
			d.renderer.Alert(MsgSetConfidence)
			return nil
		}
		d.recorder.RecordPhase2Response(step.Image, d.memory, d.payment, d.confidence, d.stepStarted)
		d.log.Debug("Phase 2 response recorded", zap.Int("image_id", step.Image.ID), zap.Bool("old", step.Image.IsOld))
	default:
		// Phase 1 images advance on their timer only.
		return ErrUnexpectedEvent
	}

	d.advance()
	return nil
}

func (d *Driver) beginPhase(phase int, images []models.Image, positions []int) error {
	timeline, err := BuildTimeline(phase, images, positions)
	if err != nil {
		return err
	}
	d.timeline = timeline
	d.cursor = 0
	if phase == 1 {
		d.state = StatePhase1
	} else {
		d.state = StatePhase2
	}
	d.log.Info("Phase started", zap.Int("phase", phase), zap.Int("steps", timeline.Len()), zap.Int("images", timeline.Images))
	d.showStep()
	return nil
}

func (d *Driver) showStep() {
	if d.cursor >= d.timeline.Len() {
		d.finishPhase()
		return
	}

	step := d.timeline.Steps[d.cursor]
	d.stepStarted = d.clock.Now()
	cfg := d.experiment.Config

	switch {
	case step.Kind == StepAttention:
		d.selected, d.hasSelected = "", false
		d.renderer.AttentionCheck(AttentionView{
			Phase:         d.timeline.Phase,
			QuestionIndex: QuestionIndex(d.timeline.Phase, step.AttentionIndex),
			Question:      d.question(step),
		})
	case d.timeline.Phase == 1:
		d.renderer.ImageView(ImageView{
			Image:       step.Image,
			Dir:         step.Image.Dir(cfg.NewImageDir()),
			DisplaySize: cfg.ImageSizes.For(step.Image.Size),
			Number:      d.timeline.ImageNumber(d.cursor),
			Total:       d.timeline.Images,
		})
		d.dwelling = true
		d.clock.AfterFunc(time.Duration(cfg.ImageDisplayDuration)*time.Millisecond, d.dwellElapsed)
	default:
		d.memory, d.memoryAnswered = "", false
		d.paymentInteracted, d.confidenceInteracted = false, false
		d.payment = d.rand.Intn(MaxPaymentCents + 1)
		d.confidence = d.rand.Intn(MaxConfidence + 1)
		d.renderer.Phase2Question(QuestionView{
			Image:             step.Image,
			Dir:               step.Image.Dir(cfg.NewImageDir()),
			DisplaySize:       cfg.ImageSizes.For(step.Image.Size),
			Number:            d.timeline.ImageNumber(d.cursor),
			Total:             d.timeline.Images,
			InitialPayment:    d.payment,
			InitialConfidence: d.confidence,
		})
	}
}

func (d *Driver) dwellElapsed() {
	if !d.dwelling {
		return
	}
	d.dwelling = false
	step := d.timeline.Steps[d.cursor]
	d.recorder.RecordImageView(step.Image, d.clock.Now().Sub(d.stepStarted))
	d.advance()
}

func (d *Driver) advance() {
	d.cursor++
	d.showStep()
}

func (d *Driver) finishPhase() {
	d.log.Info("Phase finished", zap.Int("phase", d.timeline.Phase), zap.Int("rows", d.recorder.Len()))
	if d.timeline.Phase == 1 {
		d.state = StatePhase2Instructions
		d.renderer.Instructions(2)
		return
	}
	d.state = StateComplete
	d.renderer.Complete()
}

// current returns the step under the cursor while a phase is running.
func (d *Driver) current() (Step, bool) {
	if (d.state != StatePhase1 && d.state != StatePhase2) || d.cursor >= d.timeline.Len() {
		return Step{}, false
	}
	return d.timeline.Steps[d.cursor], true
}

func (d *Driver) onPhase2Question() bool {
	step, ok := d.current()
	return ok && step.Kind == StepImage && d.timeline.Phase == 2
}

func (d *Driver) question(step Step) models.AttentionQuestion {
	return d.experiment.AttentionCheckQuestions[QuestionIndex(d.timeline.Phase, step.AttentionIndex)]
}
