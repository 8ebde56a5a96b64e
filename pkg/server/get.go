package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"bunseki/pkg/aozora"
	"bunseki/pkg/queue"
	"bunseki/pkg/utils"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "Bunseki Extraction API",
		"status":  "ok",
	})
}

// GET /api/works
func (s *Server) handleGetWorks(c echo.Context) error {
	return c.JSON(http.StatusOK, aozora.Works)
}

// GET /api/jobs/:id
func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.Queue.Get(c.Param("id"))
	if errors.Is(err, queue.ErrNotFound) {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("job not found"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}
