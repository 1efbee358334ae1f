package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"foodval-go/internal/assets"
	"foodval-go/internal/config"
	"foodval-go/internal/experiment"
	"foodval-go/internal/models"
	"foodval-go/internal/runner"
	"foodval-go/internal/utils"
	"foodval-go/internal/views"

	"github.com/a-h/templ"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Keys shared with the router middleware.
const (
	SessionIDKey  = "session_id"
	RunContextKey = "run"
)

const (
	msgConfigFailed = "Could not load experiment configuration. Please contact the researcher."
	msgImagesFailed = "Failed to load images. Please refresh the page and try again."
)

// Event types accepted by POST /session/events.
const (
	EventContinue     = "continue"
	EventSelectOption = "select_option"
	EventSelectMemory = "select_memory"
	EventPayment      = "payment"
	EventConfidence   = "confidence"
	EventConfirm      = "confirm"
)

var errBadEvent = errors.New("malformed event")

type ExperimentHandler struct {
	log      *zap.Logger
	registry *runner.Registry
}

func NewExperimentHandler(log *zap.Logger, registry *runner.Registry) *ExperimentHandler {
	return &ExperimentHandler{log: log, registry: registry}
}

type startRequest struct {
	ParticipantID string `json:"participant_id"`
}

// StartResponse is returned when a session begins.
type StartResponse struct {
	SessionID string      `json:"session_id"`
	CSRFToken string      `json:"csrf_token"`
	View      runner.View `json:"view"`
}

// Event is one participant action.
type Event struct {
	Type  string          `json:"type" binding:"required"`
	Value json.RawMessage `json:"value"`
}

// Start creates a session for a participant. The experiment document and the
// image folders are read fresh so edits apply to the next participant.
func (h *ExperimentHandler) Start(c *gin.Context) {
	// The body is optional; an empty one starts an anonymous session.
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.ParticipantID != "" && !utils.IsValidParticipantID(req.ParticipantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant ID"})
		return
	}

	now := time.Now()
	sessionID, err := utils.NewSessionID(now)
	if err != nil {
		h.log.Error("Failed to generate session ID", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}
	log := h.log.With(zap.String("session_id", sessionID))
	conf := config.Get().Experiment

	exp, err := models.LoadExperiment(conf.ConfigFile)
	if err != nil {
		log.Error("Could not load experiment configuration", zap.String("file", conf.ConfigFile), zap.Error(err))
		h.fail(c, sessionID, msgConfigFailed)
		return
	}

	rnd := rand.New(rand.NewSource(now.UnixNano()))
	sets, err := experiment.BuildImageSets(exp.Config, assets.DirCatalog{Root: conf.ImageRoot, Log: log}, rnd)
	if err != nil {
		log.Error("Could not select images", zap.String("image_root", conf.ImageRoot), zap.Error(err))
		h.fail(c, sessionID, msgConfigFailed)
		return
	}

	paths := assets.Paths(sets.Phase1, sets.Phase2, exp.Config.NewImageDir())
	manifest, err := assets.Preload(c.Request.Context(), log, conf.ImageRoot, paths, conf.PreloadWorkers, func(loaded, total int) {
		log.Debug("Loading images...", zap.Int("loaded", loaded), zap.Int("total", total))
	})
	if err != nil {
		log.Error("Image preloading stopped", zap.Error(err))
		h.fail(c, sessionID, msgImagesFailed)
		return
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		log.Error("Failed to generate CSRF token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}

	run, err := runner.Start(h.log, runner.Params{
		Session:     experiment.Session{ID: sessionID, ParticipantID: req.ParticipantID, StartedAt: now},
		CSRFToken:   token,
		Experiment:  exp,
		Images:      sets,
		Manifest:    manifest,
		Placeholder: conf.Placeholder,
		Rand:        rnd,
	})
	if err != nil {
		log.Error("Could not start session", zap.Error(err))
		h.fail(c, sessionID, msgConfigFailed)
		return
	}

	// A new session replaces whatever this browser had running.
	session := sessions.Default(c)
	if old, ok := session.Get(SessionIDKey).(string); ok {
		h.registry.Remove(old)
	}
	h.registry.Add(run)
	session.Set(SessionIDKey, sessionID)
	if err := session.Save(); err != nil {
		h.registry.Remove(sessionID)
		log.Error("Failed to save session cookie", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}

	view, err := run.View(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start session"})
		return
	}
	c.JSON(http.StatusCreated, StartResponse{SessionID: sessionID, CSRFToken: token, View: view})
}

// View returns the screen currently on display.
func (h *ExperimentHandler) View(c *gin.Context) {
	run := c.MustGet(RunContextKey).(*runner.Run)
	view, err := run.View(c.Request.Context())
	if err != nil {
		h.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Event applies one participant action and returns the resulting screen.
// Incomplete answers come back as 200 with the view's alert set.
func (h *ExperimentHandler) Event(c *gin.Context) {
	run := c.MustGet(RunContextKey).(*runner.Run)

	var ev Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event"})
		return
	}
	action, err := ev.Action()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := run.Do(c.Request.Context(), action)
	switch {
	case errors.Is(err, experiment.ErrUnexpectedEvent):
		h.log.Warn("Rejected event", zap.String("session_id", run.Session.ID), zap.String("type", ev.Type))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "view": view})
	case err != nil:
		h.runError(c, err)
	default:
		c.JSON(http.StatusOK, view)
	}
}

// Action maps the event onto a driver call.
func (ev Event) Action() (func(*experiment.Driver) error, error) {
	switch ev.Type {
	case EventContinue:
		return (*experiment.Driver).Continue, nil
	case EventConfirm:
		return (*experiment.Driver).Confirm, nil
	case EventSelectOption, EventSelectMemory:
		var s string
		if err := json.Unmarshal(ev.Value, &s); err != nil {
			return nil, errBadEvent
		}
		if ev.Type == EventSelectOption {
			return func(d *experiment.Driver) error { return d.SelectOption(s) }, nil
		}
		return func(d *experiment.Driver) error { return d.SelectMemory(s) }, nil
	case EventPayment, EventConfidence:
		var n int
		if err := json.Unmarshal(ev.Value, &n); err != nil {
			return nil, errBadEvent
		}
		if ev.Type == EventPayment {
			return func(d *experiment.Driver) error { return d.MovePayment(n) }, nil
		}
		return func(d *experiment.Driver) error { return d.MoveConfidence(n) }, nil
	default:
		return nil, errBadEvent
	}
}

// fail shows the blocking error page, or its JSON form for API clients.
func (h *ExperimentHandler) fail(c *gin.Context, sessionID, message string) {
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Status(http.StatusInternalServerError)
		c.Header("Content-Type", "text/html; charset=utf-8")
		page := views.ErrorPage(message, sessionID)
		if err := views.Layout("Error").Render(templ.WithChildren(c.Request.Context(), page), c.Writer); err != nil {
			h.log.Error("Failed to render error page", zap.Error(err))
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "session_id": sessionID})
}

func (h *ExperimentHandler) runError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, runner.ErrRunClosed):
		c.JSON(http.StatusGone, gin.H{"error": "Session has ended"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		h.log.Error("Session error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session error"})
	}
}
