// Package httpapi serves the submission API over HTTP with echo.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
	"github.com/dmitrijs2005/gophsubmit/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Service is the backend used by the handlers.
type Service interface {
	RequestTargets(ctx context.Context, courseID, assignmentID string, files []services.FileRequest) (map[string]services.UploadTarget, error)
	Upload(ctx context.Context, fileID, token string, content io.Reader, contentType string) (*models.File, error)
	CreateSubmission(ctx context.Context, courseID, assignmentID, comment string, fileIDs []string) (*models.Submission, error)
	GetFile(ctx context.Context, fileID string) (*services.FileInfo, error)
	GetSubmission(ctx context.Context, id int64) (*models.Submission, error)
}

type HTTPServer struct {
	address string
	service Service
	logger  logging.Logger
	echo    *echo.Echo
}

// NewHTTPServer builds the API. Metrics from gatherer are exposed on
// /metrics; a nil gatherer uses the default registry.
func NewHTTPServer(address string, l logging.Logger, svc Service, gatherer prometheus.Gatherer) *HTTPServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &HTTPServer{
		address: address,
		service: svc,
		logger:  l.With("module", "http_server"),
		echo:    echo.New(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = newHTTPErrorHandler(s.logger)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	v1.POST("/courses/:course/assignments/:assignment/submissions/self/files", s.requestTargets)
	v1.POST("/courses/:course/assignments/:assignment/submissions", s.createSubmission)
	v1.GET("/submissions/:id", s.getSubmission)
	v1.POST("/files/:id/content", s.uploadContent)
	v1.GET("/files/:id", s.getFile)

	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.echo.Listener = listen

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// requestLogger writes one access log line per request.
func (s *HTTPServer) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info(c.Request().Context(), "request",
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	})
}

func (s *HTTPServer) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "OK"})
}
