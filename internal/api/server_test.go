package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/health"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor/simdriver"
	"github.com/nerrad567/gray-logic-biometric/internal/snapshot"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
	"github.com/nerrad567/gray-logic-biometric/migrations"
)

// staticHealth is a HealthSource with a fixed answer.
type staticHealth struct {
	status health.Status
	reason string
}

func (h staticHealth) Current() (health.Status, string) { return h.status, h.reason }

type testEnv struct {
	srv        *Server
	router     http.Handler
	station    *station.Station
	driver     *simdriver.Driver
	session    *sensor.Session
	dispatcher *fanout.Dispatcher
	repo       *capturelog.SQLiteRepository
	audit      *audit.SQLiteRepository
}

type envOptions struct {
	withCaptureLog bool // also enables the audit log
	health         HealthSource
}

// newTestEnv builds a server over a simulated 100x100 sensor.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	driver := simdriver.New(simdriver.Options{Width: 100, Height: 100})
	sessOpts := sensor.DefaultOptions()
	sessOpts.StartupDelay = 0
	sessOpts.LEDSettle = 0
	sessOpts.LEDRetryDelay = 0
	sessOpts.BeepDuration = 0
	session := sensor.NewSession(driver, sessOpts)

	dispatcher := fanout.New(8, nil)
	loop := capture.New(session, quality.NewScorer(quality.DefaultParams()), dispatcher, capture.Options{
		PollInterval: time.Millisecond,
	})

	env := &testEnv{driver: driver, session: session, dispatcher: dispatcher}

	var captureLog capturelog.Repository
	var auditLog audit.Repository
	stCfg := station.Config{
		StationID: "test-station",
		Session:   session,
		Loop:      loop,
		Snapshots: snapshot.NewWriter(t.TempDir()),
	}
	if opts.withCaptureLog {
		db := setupDB(t)
		env.repo = capturelog.NewSQLiteRepository(db.DB)
		env.audit = audit.NewSQLiteRepository(db.DB)
		captureLog = env.repo
		auditLog = env.audit
		stCfg.CaptureLog = env.repo
		stCfg.Audit = env.audit
	}
	env.station = station.New(stCfg)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     logging.Discard(),
		Station:    env.station,
		Events:     dispatcher,
		CaptureLog: captureLog,
		Audit:      auditLog,
		Health:     opts.health,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.srv = srv
	env.router = srv.buildRouter()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env.station.StopCapture(ctx) //nolint:errcheck // Best effort cleanup
		session.Shutdown()
		dispatcher.Close(ctx) //nolint:errcheck // Best effort cleanup
	})
	return env
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ─── Health and Middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" || resp["station_id"] != "test-station" {
		t.Errorf("health body = %v", resp)
	}
}

func TestHealth_FromSource(t *testing.T) {
	tests := []struct {
		name     string
		source   staticHealth
		wantCode int
		wantBody string
	}{
		{"degraded", staticHealth{health.StatusDegraded, "acquisition failing"}, http.StatusOK, "ok"},
		{"unhealthy", staticHealth{health.StatusUnhealthy, "sensor failed"}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{health: tt.source})

			w := env.do(t, http.MethodGet, "/api/v1/health", "")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var resp map[string]any
			decodeBody(t, w, &resp)
			if resp["status"] != tt.wantBody || resp["health"] != string(tt.source.status) || resp["reason"] != tt.source.reason {
				t.Errorf("body = %v", resp)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/led", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	env.router = env.srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Sensor and Capture ────────────────────────────────────────────

func TestSensorStatus_BeforeStart(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/sensor", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st station.Status
	decodeBody(t, w, &st)
	if st.StationID != "test-station" || st.Sensor.StateName != "uninitialized" || st.Capture.Running {
		t.Errorf("status = %+v", st)
	}
	if st.LastVerdict != nil {
		t.Errorf("LastVerdict = %+v, want nil", st.LastVerdict)
	}
}

func TestCaptureStartStop(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/capture/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/capture/start", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want %d", w.Code, http.StatusConflict)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sensor", "")
	var st station.Status
	decodeBody(t, w, &st)
	if st.Sensor.StateName != "ready" || st.Sensor.Width != 100 || st.Sensor.Height != 100 {
		t.Errorf("sensor after start = %+v", st.Sensor)
	}

	w = env.do(t, http.MethodPost, "/api/v1/capture/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d", w.Code)
	}
	var resp struct {
		Status  string        `json:"status"`
		Capture capture.Stats `json:"capture"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "stopped" || resp.Capture.Running {
		t.Errorf("stop response = %+v", resp)
	}
}

func TestCaptureStart_SensorUnavailable(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.driver.FailInit(true)

	w := env.do(t, http.MethodPost, "/api/v1/capture/start", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var e Error
	decodeBody(t, w, &e)
	if e.Code != ErrCodeUnavailable {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeUnavailable)
	}
}

func TestSetLED(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantLED  int
	}{
		{"green", `{"color":"green"}`, http.StatusOK, int(sensor.LEDGreen)},
		{"red upper case", `{"color":"RED"}`, http.StatusOK, int(sensor.LEDRed)},
		{"unknown colour", `{"color":"blue"}`, http.StatusBadRequest, -1},
		{"invalid JSON", `{`, http.StatusBadRequest, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{})

			w := env.do(t, http.MethodPut, "/api/v1/led", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantLED < 0 {
				return
			}
			got, ok := env.driver.Param(sensor.ParamLED)
			if !ok || got != tt.wantLED {
				t.Errorf("LED param = %d (set %v), want %d", got, ok, tt.wantLED)
			}
			if env.session.State() != sensor.StateReady {
				t.Errorf("session state = %v, want ready", env.session.State())
			}
		})
	}
}

func TestSetLED_DriverRejects(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.driver.FailLED(10)

	w := env.do(t, http.MethodPut, "/api/v1/led", `{"color":"green"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestBeep(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/beep", "")
	if w.Code != http.StatusConflict {
		t.Errorf("beep before init status = %d, want %d", w.Code, http.StatusConflict)
	}

	if err := env.session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	w = env.do(t, http.MethodPost, "/api/v1/beep", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("beep status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := env.driver.Calls().BeepWrites; got == 0 {
		t.Error("expected a buzzer write")
	}
}

// ─── Template Matching ─────────────────────────────────────────────

func templateJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestTemplates_EnrollIdentifyVerify(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if err := env.session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	tmpl := []byte("ridge-template")
	id := 3

	w := env.do(t, http.MethodPost, "/api/v1/templates", templateJSON(t, EnrollRequest{ID: &id, Template: tmpl}))
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/identify", templateJSON(t, IdentifyRequest{Template: tmpl}))
	if w.Code != http.StatusOK {
		t.Fatalf("identify status = %d", w.Code)
	}
	var ident sensor.Identification
	decodeBody(t, w, &ident)
	if !ident.Matched || ident.ID != 3 || ident.Score != 100 {
		t.Errorf("identify = %+v, want match on 3 with score 100", ident)
	}

	tests := []struct {
		name string
		b    []byte
		want bool
	}{
		{"same", tmpl, true},
		{"different", []byte("xxxxxxxxxxxxxx"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/verify", templateJSON(t, VerifyRequest{TemplateA: tmpl, TemplateB: tt.b}))
			if w.Code != http.StatusOK {
				t.Fatalf("verify status = %d", w.Code)
			}
			var resp map[string]bool
			decodeBody(t, w, &resp)
			if resp["matched"] != tt.want {
				t.Errorf("matched = %v, want %v", resp["matched"], tt.want)
			}
		})
	}
}

func TestTemplates_Validation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"enroll without id", http.MethodPost, "/api/v1/templates", `{"template":"cmlkZ2U="}`, http.StatusBadRequest},
		{"enroll negative id", http.MethodPost, "/api/v1/templates", `{"id":-1,"template":"cmlkZ2U="}`, http.StatusBadRequest},
		{"enroll bad base64", http.MethodPost, "/api/v1/templates", `{"id":1,"template":"not base64!"}`, http.StatusBadRequest},
		{"verify before init", http.MethodPost, "/api/v1/verify", `{"template_a":"cmlkZ2U=","template_b":"cmlkZ2U="}`, http.StatusConflict},
		{"identify before init", http.MethodPost, "/api/v1/identify", `{"template":"cmlkZ2U="}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

// ─── Capture Log ───────────────────────────────────────────────────

func TestCaptures_SaveAndList(t *testing.T) {
	env := newTestEnv(t, envOptions{withCaptureLog: true})

	w := env.do(t, http.MethodPost, "/api/v1/captures", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("save before any frame status = %d, want %d", w.Code, http.StatusNotFound)
	}

	env.driver.SetFinger(true)
	if err := env.station.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	waitFor(t, "a published frame", func() bool {
		_, _, ok := env.station.LastVerdict()
		return ok
	})

	w = env.do(t, http.MethodPost, "/api/v1/captures", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", w.Code, w.Body.String())
	}
	var saved capturelog.SavedImage
	decodeBody(t, w, &saved)
	if saved.CaptureID == "" || saved.Path == "" || saved.Width != 100 {
		t.Errorf("saved = %+v", saved)
	}

	w = env.do(t, http.MethodGet, "/api/v1/captures?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Captures []capturelog.SavedImage `json:"captures"`
		Count    int                     `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 1 || list.Captures[0].CaptureID != saved.CaptureID {
		t.Errorf("list = %+v", list)
	}
}

func TestHistory_Lists(t *testing.T) {
	env := newTestEnv(t, envOptions{withCaptureLog: true})
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 3 {
		if err := env.repo.RecordVerdict(ctx, capturelog.Verdict{
			StationID:  "test-station",
			Seq:        uint64(i + 1),
			Score:      80,
			Band:       "good",
			Label:      "Good quality",
			Width:      100,
			Height:     100,
			CapturedAt: at.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("RecordVerdict() error = %v", err)
		}
	}
	if err := env.repo.RecordRecovery(ctx, capturelog.Recovery{
		StationID:  "test-station",
		OccurredAt: at,
		Failures:   10,
		DurationMS: 1000,
		Succeeded:  true,
	}); err != nil {
		t.Fatalf("RecordRecovery() error = %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/verdicts?limit=2", "")
	var verdicts struct {
		Verdicts []capturelog.Verdict `json:"verdicts"`
		Count    int                  `json:"count"`
	}
	decodeBody(t, w, &verdicts)
	if verdicts.Count != 2 || verdicts.Verdicts[0].Seq != 3 {
		t.Errorf("verdicts = %+v, want newest two", verdicts)
	}

	w = env.do(t, http.MethodGet, "/api/v1/recoveries", "")
	var recoveries struct {
		Recoveries []capturelog.Recovery `json:"recoveries"`
		Count      int                   `json:"count"`
	}
	decodeBody(t, w, &recoveries)
	if recoveries.Count != 1 || recoveries.Recoveries[0].Failures != 10 || !recoveries.Recoveries[0].Succeeded {
		t.Errorf("recoveries = %+v", recoveries)
	}
}

func TestHistory_Errors(t *testing.T) {
	withoutLog := newTestEnv(t, envOptions{})
	withLog := newTestEnv(t, envOptions{withCaptureLog: true})

	tests := []struct {
		name     string
		env      *testEnv
		path     string
		wantCode int
	}{
		{"captures without log", withoutLog, "/api/v1/captures", http.StatusServiceUnavailable},
		{"verdicts without log", withoutLog, "/api/v1/verdicts", http.StatusServiceUnavailable},
		{"recoveries without log", withoutLog, "/api/v1/recoveries", http.StatusServiceUnavailable},
		{"audit without log", withoutLog, "/api/v1/audit", http.StatusServiceUnavailable},
		{"negative offset", withLog, "/api/v1/audit?offset=-1", http.StatusBadRequest},
		{"non-numeric limit", withLog, "/api/v1/verdicts?limit=abc", http.StatusBadRequest},
		{"negative limit", withLog, "/api/v1/recoveries?limit=-5", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.env.do(t, http.MethodGet, tt.path, "")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestAudit_RecordsCommands(t *testing.T) {
	env := newTestEnv(t, envOptions{withCaptureLog: true})

	if w := env.do(t, http.MethodPut, "/api/v1/led", `{"color":"red"}`); w.Code != http.StatusOK {
		t.Fatalf("PUT /led status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/captures", ""); w.Code != http.StatusNotFound {
		t.Fatalf("POST /captures status = %d, want 404 before any frame", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/templates", `{"id":1,"template":"AQID"}`); w.Code != http.StatusCreated {
		t.Fatalf("POST /templates status = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/audit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /audit status = %d", w.Code)
	}
	var all audit.ListResult
	decodeBody(t, w, &all)
	if all.Total != 3 || len(all.Entries) != 3 {
		t.Fatalf("audit = %+v, want 3 entries", all)
	}
	for _, e := range all.Entries {
		if e.Source != audit.SourceAPI || e.StationID != "test-station" {
			t.Errorf("entry = %+v, want api source", e)
		}
	}

	w = env.do(t, http.MethodGet, "/api/v1/audit?action=save", "")
	var saves audit.ListResult
	decodeBody(t, w, &saves)
	if saves.Total != 1 || saves.Entries[0].Outcome != audit.OutcomeError {
		t.Errorf("save entries = %+v, want one failed save", saves)
	}

	w = env.do(t, http.MethodGet, "/api/v1/audit?action=led&limit=1", "")
	var leds audit.ListResult
	decodeBody(t, w, &leds)
	if leds.Total != 1 || leds.Entries[0].Details["color"] != "red" {
		t.Errorf("led entries = %+v", leds)
	}
}

// ─── Server Lifecycle ──────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start = %v", err)
	}
	if got := env.dispatcher.Listeners(); got != 1 {
		t.Errorf("dispatcher listeners = %d, want 1 (websocket hub)", got)
	}

	addr := env.srv.Addr()
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if got := env.dispatcher.Listeners(); got != 0 {
		t.Errorf("dispatcher listeners after Close = %d, want 0", got)
	}
	if _, err := http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without station should fail")
	}
}

func TestWriteStationError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sensor.ErrInvalidColor, http.StatusBadRequest},
		{station.ErrNoFrame, http.StatusNotFound},
		{capture.ErrAlreadyRunning, http.StatusConflict},
		{station.ErrSnapshotsDisabled, http.StatusConflict},
		{sensor.ErrOpenDevice, http.StatusServiceUnavailable},
		{sensor.ErrLED, http.StatusBadGateway},
		{bytes.ErrTooLarge, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			writeStationError(w, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
