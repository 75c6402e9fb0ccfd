package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/inkframe/api/models"
	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/store"
	"github.com/aouyang1/inkframe/util"
)

var (
	frameCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{3}$`)
	linkNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

// storeError maps a store error to a response.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: fmt.Sprintf("Already exists: %v", err)})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
	}
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

// Frames

func (ws *WebServer) validateFrame(f *store.Frame) error {
	if !frameCodePattern.MatchString(f.Code) {
		return fmt.Errorf("id_code must be exactly 3 letters or digits, got %q", f.Code)
	}
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}
	hours, err := util.NormalizeHours(f.WakeTimes)
	if err != nil {
		return err
	}
	f.WakeTimes = hours
	if _, err := ws.svc.DB.GetScreenTypeByName(f.ScreenType); err != nil {
		return fmt.Errorf("unknown screen_type %q", f.ScreenType)
	}
	if f.CategoryID != nil {
		if _, err := ws.svc.DB.GetCategory(*f.CategoryID); err != nil {
			return fmt.Errorf("unknown category_id %d", *f.CategoryID)
		}
	}
	return nil
}

func (ws *WebServer) handleListFrames(c *gin.Context) {
	frames, err := ws.svc.DB.ListFrames()
	if err != nil {
		storeError(c, err)
		return
	}
	if frames == nil {
		frames = []store.Frame{}
	}
	c.JSON(http.StatusOK, frames)
}

func (ws *WebServer) handleGetFrame(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	frame, err := ws.svc.DB.GetFrame(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, frame)
}

func (ws *WebServer) handleCreateFrame(c *gin.Context) {
	var frame store.Frame
	if err := c.ShouldBindJSON(&frame); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	if err := ws.validateFrame(&frame); err != nil {
		badRequest(c, "%v", err)
		return
	}

	id, err := ws.svc.DB.InsertFrame(&frame)
	if err != nil {
		storeError(c, err)
		return
	}
	if err := ws.svc.WakeFiles.Write(frame.Code, frame.ActiveWakeTimes); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Frame saved but %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.CreatedResponse{ID: id, Message: fmt.Sprintf("Frame '%s' created", frame.Code)})
}

func (ws *WebServer) handleUpdateFrame(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	previous, err := ws.svc.DB.GetFrame(id)
	if err != nil {
		storeError(c, err)
		return
	}

	var frame store.Frame
	if err := c.ShouldBindJSON(&frame); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	frame.ID = id
	if err := ws.validateFrame(&frame); err != nil {
		badRequest(c, "%v", err)
		return
	}

	if err := ws.svc.DB.UpdateFrame(&frame); err != nil {
		storeError(c, err)
		return
	}
	if previous.Code != frame.Code {
		ws.removeWakeFile(previous.Code)
	}
	if err := ws.svc.WakeFiles.Write(frame.Code, frame.ActiveWakeTimes); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Frame saved but %v", err)})
		return
	}

	c.JSON(http.StatusOK, frame)
}

func (ws *WebServer) handleDeleteFrame(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	frame, err := ws.svc.DB.GetFrame(id)
	if err != nil {
		storeError(c, err)
		return
	}
	if err := ws.svc.DB.DeleteFrame(id); err != nil {
		storeError(c, err)
		return
	}
	ws.removeWakeFile(frame.Code)

	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("Frame '%s' deleted", frame.Code)})
}

func (ws *WebServer) removeWakeFile(code string) {
	if err := os.Remove(ws.svc.WakeFiles.Path(code)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("unable to remove wake file", "frame", code, "error", err)
	}
}

// Categories

func (ws *WebServer) handleListCategories(c *gin.Context) {
	categories, err := ws.svc.DB.ListCategories()
	if err != nil {
		storeError(c, err)
		return
	}
	if categories == nil {
		categories = []store.Category{}
	}
	c.JSON(http.StatusOK, categories)
}

func (ws *WebServer) handleGetCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	category, err := ws.svc.DB.GetCategory(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (ws *WebServer) handleCreateCategory(c *gin.Context) {
	var category store.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(category.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	if len(category.LinkedFolders) == 0 {
		badRequest(c, "linked_folders must not be empty")
		return
	}

	known := ws.svc.Cache.Load().Folders
	for _, folder := range category.LinkedFolders {
		if _, ok := known[folder]; !ok {
			slog.Warn("category linked to a folder missing from the image index", "category", category.Name, "folder", folder)
		}
	}

	id, err := ws.svc.DB.InsertCategory(&category)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CreatedResponse{ID: id, Message: fmt.Sprintf("Category '%s' created", category.Name)})
}

func (ws *WebServer) handleDeleteCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := ws.svc.DB.DeleteCategory(id); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("Category %d deleted", id)})
}

// Events

func validateEventFields(name string, wakeTimes *string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	hours, err := util.NormalizeHours(*wakeTimes)
	if err != nil {
		return err
	}
	*wakeTimes = hours
	return nil
}

func (ws *WebServer) handleListEvents(c *gin.Context) {
	events, err := ws.svc.DB.ListEvents()
	if err != nil {
		storeError(c, err)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (ws *WebServer) handleGetEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	event, err := ws.svc.DB.GetEvent(id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (ws *WebServer) handleCreateEvent(c *gin.Context) {
	var event store.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	if err := validateEventFields(event.Name, &event.WakeTimes); err != nil {
		badRequest(c, "%v", err)
		return
	}
	if event.Start.Month == 0 {
		badRequest(c, "start_day_month is required")
		return
	}

	id, err := ws.svc.DB.InsertEvent(&event)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CreatedResponse{ID: id, Message: fmt.Sprintf("Event '%s' created", event.Name)})
}

func (ws *WebServer) handleUpdateEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var event store.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	event.ID = id
	if err := validateEventFields(event.Name, &event.WakeTimes); err != nil {
		badRequest(c, "%v", err)
		return
	}
	if event.Start.Month == 0 {
		badRequest(c, "start_day_month is required")
		return
	}

	if err := ws.svc.DB.UpdateEvent(&event); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (ws *WebServer) handleDeleteEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := ws.svc.DB.DeleteEvent(id); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("Event %d deleted", id)})
}

// External events

func validateExternalEvent(e *store.ExternalEvent) error {
	if err := validateEventFields(e.Name, &e.WakeTimes); err != nil {
		return err
	}
	if !linkNamePattern.MatchString(e.LinkName) {
		return fmt.Errorf("linkname may only contain letters, digits, '-' and '_', got %q", e.LinkName)
	}
	return nil
}

func (ws *WebServer) handleListExternalEvents(c *gin.Context) {
	events, err := ws.svc.DB.ListExternalEvents()
	if err != nil {
		storeError(c, err)
		return
	}
	if events == nil {
		events = []store.ExternalEvent{}
	}
	c.JSON(http.StatusOK, events)
}

func (ws *WebServer) handleCreateExternalEvent(c *gin.Context) {
	var event store.ExternalEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	if err := validateExternalEvent(&event); err != nil {
		badRequest(c, "%v", err)
		return
	}

	id, err := ws.svc.DB.InsertExternalEvent(&event)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CreatedResponse{ID: id, Message: fmt.Sprintf("External event '%s' created", event.Name)})
}

func (ws *WebServer) handleUpdateExternalEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var event store.ExternalEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	event.ID = id
	if err := validateExternalEvent(&event); err != nil {
		badRequest(c, "%v", err)
		return
	}

	if err := ws.svc.DB.UpdateExternalEvent(&event); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (ws *WebServer) handleDeleteExternalEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := ws.svc.DB.DeleteExternalEvent(id); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("External event %d deleted", id)})
}

// Screen types

// imageOrientation normalizes a screen type orientation to the full name a
// dispatch pass expects.
func imageOrientation(s string) (string, error) {
	o, err := imageindex.ParseOrientation(s)
	if err != nil {
		return "", err
	}
	if o == imageindex.Any {
		return "", errors.New("orientation is required")
	}
	return string(o), nil
}

func (ws *WebServer) handleListScreenTypes(c *gin.Context) {
	types, err := ws.svc.DB.ListScreenTypes()
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (ws *WebServer) handleCreateScreenType(c *gin.Context) {
	var st store.ScreenType
	if err := c.ShouldBindJSON(&st); err != nil {
		badRequest(c, "Invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(st.Name) == "" || strings.TrimSpace(st.ScriptFilename) == "" {
		badRequest(c, "name and script_filename are required")
		return
	}
	orientation, err := imageOrientation(st.Orientation)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	st.Orientation = orientation

	created, err := ws.svc.DB.InsertScreenType(&st)
	if err != nil {
		storeError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: fmt.Sprintf("Screen type '%s' already exists", st.Name)})
		return
	}
	c.JSON(http.StatusOK, models.CreatedResponse{ID: st.ID, Message: fmt.Sprintf("Screen type '%s' created", st.Name)})
}

func (ws *WebServer) handleDeleteScreenType(c *gin.Context) {
	name := c.Param("name")
	if err := ws.svc.DB.DeleteScreenType(name); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("Screen type '%s' deleted", name)})
}
