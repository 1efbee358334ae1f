package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foodval-go/internal/config"
	"foodval-go/internal/experiment"
	"foodval-go/internal/handlers"
	"foodval-go/internal/runner"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testExperiment = `{
  "experimentConfig": {
    "phase1": {"largeCount": 1, "smallCount": 1},
    "phase2": {"oldImagesCount": 1, "newImagesCount": 1},
    "attentionChecks": {"phase1": {"positions": [1]}, "phase2": {"positions": []}},
    "imageSizes": {"large": "700px", "small": "300px", "medium": "520px"},
    "imageDisplayDuration": 5
  },
  "attentionCheckQuestions": [
    {"id": "ac1", "prompt": "Pick A", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "ac2", "prompt": "Pick A", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "ac3", "prompt": "Pick A", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "ac4", "prompt": "Pick A", "options": ["A", "B"], "correct_answer": "A"},
    {"id": "ac5", "prompt": "Pick A", "options": ["A", "B"], "correct_answer": "A"}
  ]
}`

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	registry *runner.Registry
	conf     *config.Config
	root     string
	cookies  []*http.Cookie
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	expFile := filepath.Join(root, "experiment.json")
	require.NoError(t, os.WriteFile(expFile, []byte(testExperiment), 0o644))
	for dir, files := range map[string][]string{
		"old-images": {"apple.jpg", "bread.jpg"},
		"new-images": {"cake.jpg"},
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "images", dir), 0o755))
		for _, f := range files {
			require.NoError(t, os.WriteFile(filepath.Join(root, "images", dir, f), []byte("jpeg"), 0o644))
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "placeholder.svg"), []byte("<svg/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "styles.css"), []byte("body{}"), 0o644))

	conf := &config.Config{
		Server: config.ServerConfig{SessionSecret: "test-secret"},
		Experiment: config.ExperimentConfig{
			ConfigFile:     expFile,
			ImageRoot:      filepath.Join(root, "images"),
			AssetsDir:      filepath.Join(root, "assets"),
			Placeholder:    "/assets/placeholder.svg",
			PreloadWorkers: 2,
		},
		Sessions: config.SessionsConfig{IdleTimeout: time.Hour, SweepInterval: time.Minute},
	}
	config.Set(conf)

	registry := runner.NewRegistry()
	t.Cleanup(registry.CloseAll)
	return &testServer{
		t:        t,
		router:   Setup(zaptest.NewLogger(t), conf, registry),
		registry: registry,
		conf:     conf,
		root:     root,
	}
}

func (s *testServer) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return w
}

func (s *testServer) start(participant string) handlers.StartResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/session", gin.H{"participant_id": participant}, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp handlers.StartResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	s.token = resp.CSRFToken
	return resp
}

func (s *testServer) event(typ string, value any) (int, runner.View) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/session/events", gin.H{"type": typ, "value": value},
		http.Header{"X-Csrf-Token": {s.token}})

	var view runner.View
	if w.Code == http.StatusOK {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &view))
	}
	return w.Code, view
}

func (s *testServer) view() runner.View {
	s.t.Helper()
	w := s.do(http.MethodGet, "/session/view", nil, nil)
	require.Equal(s.t, http.StatusOK, w.Code)
	var view runner.View
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func (s *testServer) waitFor(screen string, phase int) runner.View {
	s.t.Helper()
	var v runner.View
	require.Eventually(s.t, func() bool {
		v = s.view()
		return v.Screen == screen && v.Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func TestFullSession(t *testing.T) {
	s := newTestServer(t)

	resp := s.start("P42")
	assert.True(t, strings.HasPrefix(resp.SessionID, "ses_"))
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Equal(t, runner.ScreenInstructions, resp.View.Screen)
	assert.Equal(t, 1, s.registry.Len())

	code, view := s.event(handlers.EventContinue, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, runner.ScreenImage, view.Screen)
	assert.Equal(t, "Image 1 of 2", view.Progress)
	require.True(t, strings.HasPrefix(view.ImageURL, "/images/old-images/"), view.ImageURL)

	img := s.do(http.MethodGet, view.ImageURL, nil, nil)
	assert.Equal(t, http.StatusOK, img.Code)

	s.waitFor(runner.ScreenAttention, 1)
	code, view = s.event(handlers.EventConfirm, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, experiment.MsgSelectAnswer, view.Alert)

	code, _ = s.event(handlers.EventSelectOption, "A")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.event(handlers.EventConfirm, nil)
	require.Equal(t, http.StatusOK, code)

	s.waitFor(runner.ScreenInstructions, 2)
	code, view = s.event(handlers.EventContinue, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.event(handlers.EventPayment, "lots")
	assert.Equal(t, http.StatusBadRequest, code)

	for i := 0; i < 2; i++ {
		require.Equal(t, runner.ScreenQuestion, view.Screen)
		_, view = s.event(handlers.EventSelectMemory, experiment.MemoryYes)
		assert.Empty(t, view.Alert)
		_, view = s.event(handlers.EventPayment, 150)
		_, view = s.event(handlers.EventConfidence, 90)
		code, view = s.event(handlers.EventConfirm, nil)
		require.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, runner.ScreenComplete, view.Screen)

	code, _ = s.event(handlers.EventContinue, nil)
	assert.Equal(t, http.StatusConflict, code)

	csv := s.do(http.MethodGet, "/session/data.csv", nil, nil)
	require.Equal(t, http.StatusOK, csv.Code)
	assert.Contains(t, csv.Header().Get("Content-Disposition"), resp.SessionID+".csv")
	lines := strings.Split(strings.TrimSuffix(csv.Body.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, experiment.HeaderLine(), lines[0]+"\n")
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, "P42,"), line)
	}

	m := s.do(http.MethodGet, "/session/metrics", nil, nil)
	require.Equal(t, http.StatusOK, m.Code)
	var summary struct {
		Rows int `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(m.Body.Bytes(), &summary))
	assert.Equal(t, 5, summary.Rows)

	page := s.do(http.MethodGet, "/session/results", nil, nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `id="rates-chart"`)
	assert.Contains(t, page.Body.String(), "5 recorded rows")
	csp := page.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "'nonce-")
	assert.Equal(t, "nosniff", page.Header().Get("X-Content-Type-Options"))
}

func TestEventsRequireCSRFToken(t *testing.T) {
	s := newTestServer(t)
	s.start("")

	w := s.do(http.MethodPost, "/session/events", gin.H{"type": "continue"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/session/events", gin.H{"type": "continue"}, http.Header{"X-Csrf-Token": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, runner.ScreenInstructions, s.view().Screen)
}

func TestSessionRoutesRequireRun(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/session/view", "/session/data.csv", "/session/results", "/session/metrics"} {
		w := s.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestExpiredRunIsForgotten(t *testing.T) {
	s := newTestServer(t)
	resp := s.start("P1")

	s.registry.Remove(resp.SessionID)
	w := s.do(http.MethodGet, "/session/view", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewSessionReplacesOld(t *testing.T) {
	s := newTestServer(t)
	first := s.start("P1")
	second := s.start("P1")

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, s.registry.Len())
	_, err := s.registry.Get(first.SessionID)
	assert.ErrorIs(t, err, runner.ErrSessionNotFound)
}

func TestStartRejectsBadParticipantID(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/session", gin.H{"participant_id": "<script>"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, s.registry.Len())
}

func TestConfigFailureShowsErrorPage(t *testing.T) {
	s := newTestServer(t)
	s.conf.Experiment.ConfigFile = filepath.Join(t.TempDir(), "missing.json")

	w := s.do(http.MethodPost, "/session", nil, http.Header{"Accept": {"text/html"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Could not load experiment configuration. Please contact the researcher.")
	assert.Contains(t, w.Body.String(), "Session ID: ses_")

	w = s.do(http.MethodPost, "/session", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Could not load experiment configuration")
	assert.Zero(t, s.registry.Len())
}

func TestNotEnoughImagesFailsStart(t *testing.T) {
	s := newTestServer(t)
	s.conf.Experiment.ImageRoot = t.TempDir()

	w := s.do(http.MethodPost, "/session", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, s.registry.Len())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
}


func TestUnreadableImageFallsBackToPlaceholder(t *testing.T) {
	s := newTestServer(t)
	for _, f := range []string{"apple.jpg", "bread.jpg"} {
		require.NoError(t, os.Truncate(filepath.Join(s.root, "images", "old-images", f), 0))
	}
	s.start("P1")

	code, view := s.event(handlers.EventContinue, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, runner.ScreenImage, view.Screen)
	assert.Equal(t, s.conf.Experiment.Placeholder, view.ImageURL)

	img := s.do(http.MethodGet, view.ImageURL, nil, nil)
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "<svg/>", img.Body.String())

	css := s.do(http.MethodGet, "/assets/styles.css", nil, nil)
	assert.Equal(t, http.StatusOK, css.Code)
}

func TestSessionCookieHasNoFixedLifetime(t *testing.T) {
	s := newTestServer(t)
	s.start("P1")

	var found bool
	for _, c := range s.cookies {
		if c.Name != sessionCookieName {
			continue
		}
		found = true
		assert.Zero(t, c.MaxAge)
		assert.True(t, c.Expires.IsZero(), "expires %v", c.Expires)
	}
	assert.True(t, found)

	code, _ := s.event(handlers.EventContinue, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestStartAcceptsChunkedBody(t *testing.T) {
	s := newTestServer(t)

	post := func(body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/session", body)
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := post(strings.NewReader(`{"participant_id":"P7"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp handlers.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	run, err := s.registry.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "P7", run.Session.ParticipantID)

	w = post(strings.NewReader(""))
	assert.Equal(t, http.StatusCreated, w.Code, "an empty body starts an anonymous session")

	w = post(strings.NewReader(`{"participant_id":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
