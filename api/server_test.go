package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/inkframe/api/models"
	"github.com/aouyang1/inkframe/config"
	"github.com/aouyang1/inkframe/dispatch"
	"github.com/aouyang1/inkframe/store"
	"github.com/aouyang1/inkframe/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type runCall struct {
	script string
	args   []string
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []runCall
}

func (r *recordingRunner) Run(ctx context.Context, script string, args ...string) (dispatch.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{script: script, args: args})
	return dispatch.RunResult{Stdout: "ok"}, nil
}

type harness struct {
	cfg    *config.Config
	db     *store.Database
	runner *recordingRunner
	ws     *WebServer
}

// newHarness serves a fresh root at 13:30 on 07-01, so the upcoming hour is 14.
func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default(t.TempDir())
	db := testutil.NewTestDatabase(t)
	runner := &recordingRunner{}
	svc := NewServicesWithRunner(cfg, db, testutil.At(7, 1, 13, 30), runner)

	return &harness{cfg: cfg, db: db, runner: runner, ws: NewWebServer(svc)}
}

func (h *harness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ws.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestToggleExternalEvent(t *testing.T) {
	h := newHarness(t)
	party := testutil.MustInsertCategory(t, h.db, "party", "Shared - Party")
	frameID := testutil.MustInsertFrame(t, h.db, store.Frame{Code: "ABC", Name: "Hall", WakeTimes: "8,20"})
	if _, err := h.db.InsertExternalEvent(&store.ExternalEvent{
		Name:       "Party mode",
		LinkName:   "party",
		WakeTimes:  "9,12,18",
		CategoryID: &party,
		FrameIDs:   []int64{frameID},
	}); err != nil {
		t.Fatalf("InsertExternalEvent() error = %v", err)
	}
	wakeFile := filepath.Join(h.cfg.StaticPath, "frameABC.txt")

	steps := []struct {
		target     string
		wantCode   int
		wantStatus string
		wantWake   string
	}{
		{target: "/externalevent/party/on", wantCode: http.StatusOK, wantStatus: "activated", wantWake: "9,12,18"},
		{target: "/externalevent/party/on", wantCode: http.StatusOK, wantStatus: "already_active", wantWake: "9,12,18"},
		{target: "/externalevent/party/off", wantCode: http.StatusOK, wantStatus: "deactivated", wantWake: "8,20"},
		{target: "/externalevent/party/off", wantCode: http.StatusOK, wantStatus: "already_inactive", wantWake: "8,20"},
		{target: "/externalevent/unknown/on", wantCode: http.StatusNotFound},
		{target: "/externalevent/party/maybe", wantCode: http.StatusBadRequest},
		{target: "/externalevent/party/ON", wantCode: http.StatusBadRequest},
		{target: "/externalevent/unknown/maybe", wantCode: http.StatusNotFound},
	}

	for _, step := range steps {
		w := h.do(t, http.MethodGet, step.target, nil)
		if w.Code != step.wantCode {
			t.Fatalf("GET %s status = %d, want %d (body %s)", step.target, w.Code, step.wantCode, w.Body.String())
		}
		if step.wantStatus == "" {
			continue
		}
		resp := decode[models.ToggleResponse](t, w)
		if resp.Status != step.wantStatus {
			t.Errorf("GET %s status = %q, want %q", step.target, resp.Status, step.wantStatus)
		}
		if got := readFile(t, wakeFile); got != step.wantWake {
			t.Errorf("after GET %s wake file = %q, want %q", step.target, got, step.wantWake)
		}
	}
}

func TestRandomImage(t *testing.T) {
	h := newHarness(t)
	want := testutil.WritePNG(t, filepath.Join(h.cfg.SharedImagesPath, "Family"), "wide.png", 80, 60)
	family := testutil.MustInsertCategory(t, h.db, "family", "Shared - Family")

	tests := []struct {
		name     string
		target   string
		wantCode int
	}{
		{name: "horizontal", target: "/random_image/%d/h", wantCode: http.StatusOK},
		{name: "any orientation", target: "/random_image/%d", wantCode: http.StatusOK},
		{name: "no vertical image", target: "/random_image/%d/v", wantCode: http.StatusNotFound},
		{name: "bad orientation", target: "/random_image/%d/x", wantCode: http.StatusBadRequest},
		{name: "unknown category", target: "/random_image/999", wantCode: http.StatusNotFound},
		{name: "bad category id", target: "/random_image/abc", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			if strings.Contains(target, "%d") {
				target = strings.Replace(target, "%d", itoa(family), 1)
			}
			w := h.do(t, http.MethodGet, target, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("GET %s status = %d, want %d", target, w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && w.Body.String() != readFile(t, want) {
				t.Errorf("GET %s did not serve %s", target, want)
			}
		})
	}
}

func TestRefreshImages(t *testing.T) {
	h := newHarness(t)
	testutil.WritePNG(t, filepath.Join(h.cfg.SharedImagesPath, "Family"), "a.png", 80, 60)
	testutil.WritePNG(t, filepath.Join(h.cfg.SharedImagesPath, "Family"), "b.png", 60, 80)

	w := h.do(t, http.MethodPost, "/refresh_images", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /refresh_images status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.RefreshResponse](t, w)
	// the local root is missing, so it contributes a placeholder folder
	if resp.Folders != 2 {
		t.Errorf("Folders = %d, want 2", resp.Folders)
	}
	if _, err := os.Stat(h.cfg.CachePath); err != nil {
		t.Errorf("cache file not written: %v", err)
	}

	w = h.do(t, http.MethodGet, "/refresh_images", nil)
	if w.Code != http.StatusSeeOther {
		t.Errorf("GET /refresh_images status = %d, want %d", w.Code, http.StatusSeeOther)
	}

	w = h.do(t, http.MethodGet, "/api/folders", nil)
	folders := decode[models.FolderListResponse](t, w)
	found := false
	for _, f := range folders.Folders {
		if f == "Shared - Family" {
			found = true
		}
	}
	if !found {
		t.Errorf("folders = %v, want Shared - Family", folders.Folders)
	}
}

func TestImagesPage(t *testing.T) {
	h := newHarness(t)
	testutil.WritePNG(t, filepath.Join(h.cfg.SharedImagesPath, "Family"), "a.png", 80, 60)

	w := h.do(t, http.MethodGet, "/images", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /images status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Shared - Family", "a.png"} {
		if !strings.Contains(body, want) {
			t.Errorf("images page missing %q", want)
		}
	}
}

func TestRunScript(t *testing.T) {
	h := newHarness(t)
	image := testutil.WritePNG(t, filepath.Join(h.cfg.SharedImagesPath, "Family"), "a.png", 80, 60)
	testutil.WriteFile(t, h.cfg.ScriptsPath, "6color73i.py", []byte("print('render')\n"))
	family := testutil.MustInsertCategory(t, h.db, "family", "Shared - Family")
	testutil.MustInsertFrame(t, h.db, store.Frame{Code: "ABC", Name: "Hall", WakeTimes: "14", CategoryID: &family})
	testutil.MustInsertFrame(t, h.db, store.Frame{Code: "DEF", Name: "Den", WakeTimes: "8", CategoryID: &family})

	w := h.do(t, http.MethodGet, "/runscript", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /runscript status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ABC") {
		t.Errorf("dispatch page does not mention frame ABC")
	}

	if len(h.runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(h.runner.calls))
	}
	call := h.runner.calls[0]
	wantArgs := []string{"horizontal", image, filepath.Join(h.cfg.StaticPath, "frameABC.h")}
	if strings.Join(call.args, "|") != strings.Join(wantArgs, "|") {
		t.Errorf("args = %v, want %v", call.args, wantArgs)
	}
	if call.script != filepath.Join(h.cfg.ScriptsPath, "6color73i.py") {
		t.Errorf("script = %q", call.script)
	}
}

func TestFrameCRUD(t *testing.T) {
	h := newHarness(t)
	family := testutil.MustInsertCategory(t, h.db, "family", "Shared - Family")
	missing := int64(999)

	invalid := []struct {
		name  string
		frame store.Frame
	}{
		{name: "short code", frame: store.Frame{Code: "AB", Name: "Hall", ScreenType: testutil.DefaultScreenType}},
		{name: "code with symbol", frame: store.Frame{Code: "A-C", Name: "Hall", ScreenType: testutil.DefaultScreenType}},
		{name: "missing name", frame: store.Frame{Code: "ABC", ScreenType: testutil.DefaultScreenType}},
		{name: "bad hour", frame: store.Frame{Code: "ABC", Name: "Hall", WakeTimes: "8,24", ScreenType: testutil.DefaultScreenType}},
		{name: "unknown screen type", frame: store.Frame{Code: "ABC", Name: "Hall", ScreenType: "Nope"}},
		{name: "unknown category", frame: store.Frame{Code: "ABC", Name: "Hall", ScreenType: testutil.DefaultScreenType, CategoryID: &missing}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/frames", tt.frame)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}

	frame := store.Frame{Code: "XYZ", Name: "Hall", WakeTimes: "20, 8,8", ScreenType: testutil.DefaultScreenType, CategoryID: &family}
	w := h.do(t, http.MethodPost, "/api/frames", frame)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[models.CreatedResponse](t, w)
	wakeFile := filepath.Join(h.cfg.StaticPath, "frameXYZ.txt")
	if got := readFile(t, wakeFile); got != "8,20" {
		t.Errorf("wake file = %q, want 8,20", got)
	}

	if w := h.do(t, http.MethodPost, "/api/frames", frame); w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want %d", w.Code, http.StatusConflict)
	}

	target := "/api/frames/" + itoa(created.ID)
	frame.WakeTimes = "6"
	if w := h.do(t, http.MethodPut, target, frame); w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	if got := readFile(t, wakeFile); got != "6" {
		t.Errorf("wake file after update = %q, want 6", got)
	}

	w = h.do(t, http.MethodGet, target, nil)
	got := decode[store.Frame](t, w)
	if got.ActiveWakeTimes != "6" {
		t.Errorf("ActiveWakeTimes = %q, want 6", got.ActiveWakeTimes)
	}

	if w := h.do(t, http.MethodDelete, target, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, err := os.Stat(wakeFile); !os.IsNotExist(err) {
		t.Errorf("wake file still present after delete: %v", err)
	}
	if w := h.do(t, http.MethodGet, target, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCategoryAndEventValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		target   string
		body     any
		wantCode int
	}{
		{
			name:     "category without folders",
			target:   "/api/categories",
			body:     store.Category{Name: "empty"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "category",
			target:   "/api/categories",
			body:     store.Category{Name: "trips", LinkedFolders: []string{"Shared - Trips"}},
			wantCode: http.StatusOK,
		},
		{
			name:     "event with bad hours",
			target:   "/api/events",
			body:     map[string]any{"name": "Summer", "start_day_month": "07-01", "event_times": "7,99"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "event with bad date",
			target:   "/api/events",
			body:     map[string]any{"name": "Summer", "start_day_month": "13-01", "event_times": "7"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "event",
			target:   "/api/events",
			body:     map[string]any{"name": "Summer", "start_day_month": "07-01", "end_day_month": "07-10", "event_times": "7"},
			wantCode: http.StatusOK,
		},
		{
			name:     "external event with bad link",
			target:   "/api/external_events",
			body:     store.ExternalEvent{Name: "Party", LinkName: "has space", WakeTimes: "7"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "external event",
			target:   "/api/external_events",
			body:     store.ExternalEvent{Name: "Party", LinkName: "party_mode", WakeTimes: "7"},
			wantCode: http.StatusOK,
		},
		{
			name:     "screen type with bad orientation",
			target:   "/api/screen_types",
			body:     store.ScreenType{Name: "Portrait", ScriptFilename: "p.py", Orientation: "diagonal"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "screen type",
			target:   "/api/screen_types",
			body:     store.ScreenType{Name: "Portrait", ScriptFilename: "p.py", Orientation: "v"},
			wantCode: http.StatusOK,
		},
		{
			name:     "duplicate screen type",
			target:   "/api/screen_types",
			body:     store.ScreenType{Name: "Portrait", ScriptFilename: "p.py", Orientation: "v"},
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("POST %s status = %d, want %d (body %s)", tt.target, w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	st, err := h.db.GetScreenTypeByName("Portrait")
	if err != nil {
		t.Fatalf("GetScreenTypeByName() error = %v", err)
	}
	if st.Orientation != "Vertical" {
		t.Errorf("Orientation = %q, want Vertical", st.Orientation)
	}
}
