package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
	"github.com/audiolibrelab/singalong/internal/catalog"
	"github.com/audiolibrelab/singalong/internal/config"
)

// RequestIDHeader carries the per-request id
const RequestIDHeader = "X-Request-ID"

// Server is the mock karaoke API: search, track processing results, stem
// files and the pitch processor module
type Server struct {
	catalog *catalog.Catalog
	cfg     config.ServerConfig
	router  *gin.Engine
	http    *http.Server
}

// New creates a server over a catalog
func New(cfg config.ServerConfig, cat *catalog.Catalog) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{catalog: cat, cfg: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.cfg.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", s.handleHealth)
		apiGroup.GET("/search", s.handleSearch)
		apiGroup.POST("/process-track", s.handleProcessTrackBody)
		apiGroup.POST("/process-track/:id", s.handleProcessTrack)
		apiGroup.GET("/images", s.handleImages)
	}

	router.Static("/data", s.catalog.Root())
	router.GET(s.cfg.ModulePath, s.handleModule)
	return router
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting karaoke API server",
		"port", s.cfg.Port,
		"data_dir", s.catalog.Root(),
		"tracks", s.catalog.Len(),
		"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), s.cfg.Port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.cfg.Port))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"tracks": s.catalog.Len(),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		q = c.Query("query")
	}
	results := []api.SearchResult{}
	for _, e := range s.catalog.Search(q) {
		results = append(results, api.SearchResult{
			ID:       e.ID,
			Title:    e.Title,
			Artist:   e.Artist,
			CoverURL: e.CoverURL,
		})
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleProcessTrack(c *gin.Context) {
	s.processTrack(c, c.Param("id"))
}

func (s *Server) handleProcessTrackBody(c *gin.Context) {
	var req api.ProcessTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TrackID == "" {
		s.sendErrorResponse(c, http.StatusBadRequest, "track_id is required", "operation", "process_track")
		return
	}
	s.processTrack(c, req.TrackID)
}

func (s *Server) processTrack(c *gin.Context, id string) {
	e, err := s.catalog.Get(id)
	if err != nil {
		s.sendErrorResponse(c, http.StatusNotFound, "Track not found", "operation", "process_track", "track_id", id)
		return
	}
	c.JSON(http.StatusOK, api.NewProcessTrackResponse(s.track(e), len(e.Images)))
}

func (s *Server) handleImages(c *gin.Context) {
	folder := c.Query("track_folder")
	if folder == "" {
		s.sendErrorResponse(c, http.StatusBadRequest, "track_folder is required", "operation", "images")
		return
	}
	e, err := s.catalog.Folder(folder)
	if err != nil {
		e, err = s.catalog.Get(folder)
	}
	if err != nil {
		s.sendErrorResponse(c, http.StatusNotFound, "Track folder not found", "operation", "images", "track_folder", folder)
		return
	}
	images := make([]string, 0, len(e.Images))
	for _, img := range e.Images {
		images = append(images, dataURL(img))
	}
	c.JSON(http.StatusOK, api.ImagesResponse{Status: api.StatusSuccess, Images: images})
}

func (s *Server) handleModule(c *gin.Context) {
	if s.cfg.DisablePitchModule {
		s.sendErrorResponse(c, http.StatusNotFound, "Pitch module disabled", "operation", "module")
		return
	}
	c.JSON(http.StatusOK, audio.PitchModule())
}

// track converts a catalog entry to the wire track with server URLs
func (s *Server) track(e catalog.Entry) api.Track {
	t := api.Track{
		ID:        e.ID,
		Title:     e.Title,
		Artist:    e.Artist,
		Key:       e.Key,
		CoverURL:  e.CoverURL,
		ImagesURL: "/api/images?track_folder=" + url.QueryEscape(e.Folder),
		Lyrics:    e.Lyrics,
	}
	if e.Instrumental != "" {
		t.Stems.Instrumental = dataURL(e.Instrumental)
	}
	if e.Vocals != "" {
		t.Stems.Vocals = dataURL(e.Vocals)
	}
	if t.CoverURL == "" && len(e.Images) > 0 {
		t.CoverURL = dataURL(e.Images[0])
	}
	return t
}

func dataURL(rel string) string {
	return (&url.URL{Path: "/data/" + rel}).String()
}

// sendErrorResponse logs the failure with its context and answers in the
// API's error shape
func (s *Server) sendErrorResponse(c *gin.Context, statusCode int, errorMsg string, logContext ...any) {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode, "request_id", c.GetString(RequestIDHeader)}
	logFields = append(logFields, logContext...)
	slog.Error("Sending error response to client", logFields...)

	c.AbortWithStatusJSON(statusCode, gin.H{
		"status":  api.StatusError,
		"message": errorMsg,
	})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(RequestIDHeader))
	}
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "localhost"
}
