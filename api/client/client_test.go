package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/aouyang1/inkframe/api/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /externalevent/{link}/{action}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("link") != "party" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Unknown external event"})
			return
		}
		json.NewEncoder(w).Encode(models.ToggleResponse{
			LinkName: r.PathValue("link"),
			Action:   r.PathValue("action"),
			Status:   "activated",
			Message:  "External event 'party' activated",
		})
	})
	mux.HandleFunc("POST /refresh_images", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.RefreshResponse{Folders: 3, Images: 12, Message: "Image index refreshed"})
	})
	mux.HandleFunc("GET /api/folders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.FolderListResponse{Folders: []string{"Local - default", "Shared - Beach"}})
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFrameClient(t *testing.T) {
	srv := newTestServer(t)
	fc := NewFrameClient(srv.URL)

	toggle, err := fc.Toggle("party", "on")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if toggle.Status != "activated" || toggle.Action != "on" {
		t.Errorf("Toggle() = %+v", toggle)
	}

	refresh, err := fc.RefreshImages()
	if err != nil {
		t.Fatalf("RefreshImages() error = %v", err)
	}
	if refresh.Folders != 3 || refresh.Images != 12 {
		t.Errorf("RefreshImages() = %+v", refresh)
	}

	folders, err := fc.Folders()
	if err != nil {
		t.Fatalf("Folders() error = %v", err)
	}
	if want := []string{"Local - default", "Shared - Beach"}; !slices.Equal(folders, want) {
		t.Errorf("Folders() = %v, want %v", folders, want)
	}
}

func TestFrameClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	fc := NewFrameClient(srv.URL)

	_, err := fc.Toggle("unknown", "on")
	if err == nil || !strings.Contains(err.Error(), "Unknown external event") {
		t.Errorf("Toggle(unknown) error = %v, want server message", err)
	}

	var out models.MessageResponse
	err = fc.do(http.MethodGet, srv.URL+"/broken", &out)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("do(/broken) error = %v, want status 502", err)
	}
}
