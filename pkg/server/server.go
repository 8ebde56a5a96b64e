package server

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bunseki/pkg/extractor"
	"bunseki/pkg/flight"
	"bunseki/pkg/queue"
	"bunseki/pkg/schema"
)

type Fetcher interface {
	Fetch(ctx context.Context, title string) (string, error)
}

type Extractor interface {
	ExtractAll(ctx context.Context, text string) (schema.Batch, *extractor.Report, error)
}

// Options tunes the server. AfterRun, when set, is called with the result
// of every successful job.
type Options struct {
	QueueSize int
	TextTTL   time.Duration
	AfterRun  func(ctx context.Context, req queue.Request, b schema.Batch, r *extractor.Report)
}

type Server struct {
	Echo      *echo.Echo
	Queue     *queue.Queue
	Texts     *flight.Cache[string, string]
	Extractor Extractor
	Ctx       context.Context

	afterRun func(ctx context.Context, req queue.Request, b schema.Batch, r *extractor.Report)
}

func NewServer(ctx context.Context, f Fetcher, ex Extractor, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.TextTTL == 0 {
		opts.TextTTL = time.Hour
	}

	s := &Server{
		Echo:      e,
		Texts:     flight.NewCache(opts.TextTTL, f.Fetch),
		Extractor: ex,
		Ctx:       ctx,
		afterRun:  opts.AfterRun,
	}
	s.Queue = queue.New(s.runJob, opts.QueueSize)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api")
	api.GET("/works", s.handleGetWorks)
	api.POST("/extract", s.handlePostExtract)
	api.GET("/jobs/:id", s.handleGetJob)
}

// SetLogLevel applies a charmbracelet level name to echo's logger.
func (s *Server) SetLogLevel(level string) {
	lvl := gommonlog.INFO
	switch strings.ToLower(level) {
	case "debug":
		lvl = gommonlog.DEBUG
	case "warn":
		lvl = gommonlog.WARN
	case "error", "fatal":
		lvl = gommonlog.ERROR
	}
	s.Echo.Logger.SetLevel(lvl)
}

func (s *Server) Start(addr string) error {
	s.Queue.Start(s.Ctx)
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	err := s.Echo.Shutdown(ctx)
	s.Queue.Stop()
	return err
}

func (s *Server) runJob(ctx context.Context, req queue.Request) (schema.Batch, *extractor.Report, error) {
	text := req.Text
	if text == "" {
		var err error
		text, err = s.Texts.Get(ctx, req.Work)
		if err != nil {
			return schema.Batch{}, nil, err
		}
	}

	batch, report, err := s.Extractor.ExtractAll(ctx, text)
	if err != nil {
		return batch, report, err
	}
	if s.afterRun != nil {
		s.afterRun(ctx, req, batch, report)
	}
	return batch, report, nil
}
