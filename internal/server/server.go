// Package server exposes the study service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"brainbolt/internal/domain"
	"brainbolt/internal/ingest"
	"brainbolt/internal/service"
)

// Config controls uploads and routing.
type Config struct {
	UploadDir   string
	MaxUploadMB int
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
}

// Server wraps an echo engine bound to one Service.
type Server struct {
	echo   *echo.Echo
	svc    *service.Service
	cfg    Config
	logger *log.Logger
}

func New(svc *service.Service, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{echo: e, svc: svc, cfg: cfg, logger: logger}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}
	s.Register(e.Group("/api"))
	return s
}

// Register mounts the API routes under g.
func (s *Server) Register(g *echo.Group) {
	g.POST("/upload", s.upload)
	g.POST("/process", s.process)
	g.DELETE("/sessions/:id", s.closeSession)
	g.GET("/metrics/latest", s.latestMetrics)
	g.GET("/metrics/history", s.historyMetrics)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) upload(c echo.Context) error {
	limit := int64(s.cfg.MaxUploadMB) << 20
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "missing file field"})
	}
	if fh.Size > limit {
		return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Detail: fmt.Sprintf("file exceeds maximum size of %dMB", s.cfg.MaxUploadMB)})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "unreadable upload"})
	}
	defer src.Close()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.logger.Printf("upload dir: %v", err)
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: "file upload failed"})
	}
	name := filepath.Base(fh.Filename)
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	dst, err := os.Create(path)
	if err != nil {
		s.logger.Printf("create %s: %v", path, err)
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: "file upload failed"})
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil || n > limit {
		_ = os.Remove(path)
		if n > limit {
			return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Detail: fmt.Sprintf("file exceeds maximum size of %dMB", s.cfg.MaxUploadMB)})
		}
		s.logger.Printf("write %s: %v", path, err)
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: "file upload failed"})
	}
	s.logger.Printf("saved %s to %s (%.2f MB)", name, path, float64(n)/(1<<20))
	return c.JSON(http.StatusOK, map[string]string{"file_path": path, "filename": name})
}

type processRequest struct {
	service.Request
	SourcePath string `json:"source_path,omitempty"`
}

func (s *Server) process(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "invalid request body"})
	}
	if req.SourcePath != "" {
		req.Sources = append([]string{req.SourcePath}, req.Sources...)
	}
	if req.SessionID == "" && len(req.Sources) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "source_path or session_id is required"})
	}
	res, err := s.svc.Process(c.Request().Context(), req.Request)
	if err != nil {
		status, detail := classify(err)
		s.logger.Printf("process mode=%s failed: %v", req.Mode, err)
		return c.JSON(status, errorBody{Detail: detail})
	}
	return c.JSON(http.StatusOK, res)
}

// classify maps service errors to a status and a client-safe message.
// Internal causes are only logged.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnsupportedMode):
		return http.StatusBadRequest, "unsupported mode"
	case errors.Is(err, service.ErrUnknownSession):
		return http.StatusNotFound, "unknown or expired session"
	case errors.Is(err, domain.ErrEmptyIngest), errors.Is(err, domain.ErrNoContentIndexed), errors.Is(err, ingest.ErrNoSources):
		return http.StatusUnprocessableEntity, "no usable content found in this source"
	default:
		return http.StatusInternalServerError, "could not process this source"
	}
}

func (s *Server) closeSession(c echo.Context) error {
	id := c.Param("id")
	if _, ok := s.svc.Session(id); !ok {
		return c.JSON(http.StatusNotFound, errorBody{Detail: "unknown or expired session"})
	}
	if err := s.svc.Close(id); err != nil {
		s.logger.Printf("close session %s: %v", id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) latestMetrics(c echo.Context) error {
	rec, ok := s.svc.History().Latest()
	if !ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "no data"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) historyMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.History().Records())
}
