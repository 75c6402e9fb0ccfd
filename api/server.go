// Package api is the main api web server
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aouyang1/inkframe/activation"
	"github.com/aouyang1/inkframe/api/models"
	"github.com/aouyang1/inkframe/api/web/templates"
	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/store"
	"github.com/aouyang1/inkframe/util"
)

type WebServer struct {
	router *gin.Engine
	svc    *Services

	localManager    *LocalManager
	remoteManager   *RemoteManager
	scheduleManager *ScheduleManager
}

func NewWebServer(svc *Services) *WebServer {
	ws := &WebServer{
		router: gin.Default(),
		svc:    svc,
	}

	// Setup routes
	ws.setupRoutes()

	return ws
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes() {
	ws.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/images")
	})

	// entry points used by frames, buttons and home automation
	ws.router.GET("/externalevent/:linkname/:action", ws.handleToggleExternalEvent)
	ws.router.GET("/refresh_images", ws.handleRefreshImages)
	ws.router.POST("/refresh_images", ws.handleRefreshImages)
	ws.router.GET("/images", ws.handleImagesPage)
	ws.router.GET("/random_image/:category_id", ws.handleRandomImage)
	ws.router.GET("/random_image/:category_id/:orientation", ws.handleRandomImage)
	ws.router.GET("/runscript", ws.handleRunScript)

	// API routes
	api := ws.router.Group("/api")
	api.GET("/images", ws.handleListImages)
	api.GET("/folders", ws.handleListFolders)

	api.GET("/frames", ws.handleListFrames)
	api.GET("/frames/:id", ws.handleGetFrame)
	api.POST("/frames", ws.handleCreateFrame)
	api.PUT("/frames/:id", ws.handleUpdateFrame)
	api.DELETE("/frames/:id", ws.handleDeleteFrame)

	api.GET("/categories", ws.handleListCategories)
	api.GET("/categories/:id", ws.handleGetCategory)
	api.POST("/categories", ws.handleCreateCategory)
	api.DELETE("/categories/:id", ws.handleDeleteCategory)

	api.GET("/events", ws.handleListEvents)
	api.GET("/events/:id", ws.handleGetEvent)
	api.POST("/events", ws.handleCreateEvent)
	api.PUT("/events/:id", ws.handleUpdateEvent)
	api.DELETE("/events/:id", ws.handleDeleteEvent)

	api.GET("/external_events", ws.handleListExternalEvents)
	api.POST("/external_events", ws.handleCreateExternalEvent)
	api.PUT("/external_events/:id", ws.handleUpdateExternalEvent)
	api.DELETE("/external_events/:id", ws.handleDeleteExternalEvent)

	api.GET("/screen_types", ws.handleListScreenTypes)
	api.POST("/screen_types", ws.handleCreateScreenType)
	api.DELETE("/screen_types/:name", ws.handleDeleteScreenType)
}

// Start runs the background managers and serves HTTP until ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	cfg := ws.svc.Config

	ws.localManager = NewLocalManager(cfg.SharedImagesPath, cfg.LocalImagesPath, cfg.WatchInterval.Duration)
	ws.scheduleManager = NewScheduleManager(ws.svc.Engine, ws.svc.Dispatcher, ws.svc.Clock, cfg.EventPollInterval.Duration, cfg.DispatchMinute())

	var remoteUpdated <-chan bool
	if cfg.Remote.S3Bucket != "" {
		remoteManager, err := NewRemoteManager(ctx, cfg.Remote, cfg.SharedImagesPath)
		if err != nil {
			return fmt.Errorf("failed to initialize remote manager: %w", err)
		}
		ws.remoteManager = remoteManager
		remoteUpdated = remoteManager.Updated
		go remoteManager.Run(ctx)
	}

	// listen for image tree changes and rebuild the index
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ws.localManager.Updated:
				ws.refreshImages("local change")
			case <-remoteUpdated:
				ws.refreshImages("remote sync")
			}
		}
	}()

	go ws.localManager.Run(ctx)
	go ws.scheduleManager.RunEvents(ctx)
	go ws.scheduleManager.RunDispatch(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error while shutting down web server", "error", err)
		}
	}()

	log.Printf("Starting web server on %s", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	return nil
}

func (ws *WebServer) refreshImages(reason string) (*imageindex.Document, error) {
	doc, err := ws.svc.Cache.Refresh()
	if err != nil {
		slog.Error("error while refreshing image index", "reason", reason, "error", err)
		return doc, err
	}
	slog.Info("refreshed image index", "reason", reason, "folders", len(doc.Folders))
	return doc, nil
}

func render(c *gin.Context, status int, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render page", "path", c.Request.URL.Path, "error", err)
	}
}

func (ws *WebServer) handleToggleExternalEvent(c *gin.Context) {
	linkName := c.Param("linkname")
	action := c.Param("action")

	outcome, err := ws.svc.Engine.Toggle(linkName, action)
	switch {
	case errors.Is(err, activation.ErrUnknownLink):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Unknown external event '%s'", linkName)})
		return
	case errors.Is(err, activation.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid action '%s', use 'on' or 'off'", action)})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to toggle external event: %v", err)})
		return
	}

	var message string
	switch outcome {
	case activation.Activated:
		message = fmt.Sprintf("External event '%s' activated", linkName)
	case activation.Deactivated:
		message = fmt.Sprintf("External event '%s' deactivated", linkName)
	case activation.AlreadyActive:
		message = fmt.Sprintf("External event '%s' is already active", linkName)
	case activation.AlreadyInactive:
		message = fmt.Sprintf("External event '%s' is already inactive", linkName)
	}

	c.JSON(http.StatusOK, models.ToggleResponse{
		LinkName: linkName,
		Action:   action,
		Status:   string(outcome),
		Message:  message,
	})
}

func (ws *WebServer) handleRefreshImages(c *gin.Context) {
	doc, err := ws.refreshImages("manual")
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to refresh images: %v", err)})
		return
	}

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusSeeOther, "/images")
		return
	}

	images := 0
	for _, imgs := range doc.Folders {
		images += len(imgs)
	}
	c.JSON(http.StatusOK, models.RefreshResponse{
		IndexedAt: doc.IndexedAt,
		Folders:   len(doc.Folders),
		Images:    images,
		Message:   "Image index refreshed",
	})
}

func (ws *WebServer) handleImagesPage(c *gin.Context) {
	doc := ws.svc.Cache.Load()
	externalEvents, err := ws.svc.DB.ListExternalEvents()
	if err != nil {
		slog.Warn("unable to list external events for images page", "error", err)
	}
	render(c, http.StatusOK, templates.ImagesPage(doc, externalEvents))
}

func (ws *WebServer) handleListImages(c *gin.Context) {
	c.JSON(http.StatusOK, ws.svc.Cache.Load())
}

func (ws *WebServer) handleListFolders(c *gin.Context) {
	c.JSON(http.StatusOK, models.FolderListResponse{Folders: ws.svc.Cache.Load().Folders.Labels()})
}

func (ws *WebServer) handleRandomImage(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("category_id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid category id")
		return
	}
	orientation, err := imageindex.ParseOrientation(c.Param("orientation"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid orientation, use h, v or s")
		return
	}

	category, err := ws.svc.DB.GetCategory(categoryID)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	path, ok, err := ws.svc.Selector.Pick(category.LinkedFolders, orientation)
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Error picking image: %v", err))
		return
	}
	if !ok {
		c.String(http.StatusNotFound, "No image found for this category and orientation")
		return
	}
	c.File(path)
}

func (ws *WebServer) handleRunScript(c *gin.Context) {
	now := ws.svc.Clock.Now()
	hour := ws.svc.Dispatcher.UpcomingHour(now)

	logger := slog.With("pass", uuid.NewString(), "trigger", "manual")
	ctx := util.WithLogger(c.Request.Context(), logger)
	logger.Info("running render scripts", "hour", hour)

	results, err := ws.svc.Dispatcher.RunHour(ctx, hour)
	if err != nil {
		logger.Error("render run failed", "error", err)
	}
	render(c, http.StatusOK, templates.DispatchPage(hour, results, err))
}
