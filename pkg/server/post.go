package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"bunseki/pkg/aozora"
	"bunseki/pkg/queue"
	"bunseki/pkg/utils"
)

type extractResp struct {
	ID    string      `json:"id"`
	State queue.State `json:"state"`
}

// POST /api/extract
func (s *Server) handlePostExtract(c echo.Context) error {
	var req queue.Request
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/extract", "error", err)
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid json"))
	}
	req.Work = strings.TrimSpace(req.Work)
	req.Text = strings.TrimSpace(req.Text)

	switch {
	case req.Text != "":
		req.Work = ""
	case req.Work == "":
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("work or text is required"))
	default:
		if _, err := aozora.Lookup(req.Work); err != nil {
			return c.JSON(http.StatusBadRequest, utils.ErrJSON(err.Error()))
		}
	}

	id, err := s.Queue.Add(req)
	switch {
	case errors.Is(err, queue.ErrFull), errors.Is(err, queue.ErrStopped):
		log.Warn("rejected extraction job", "error", err)
		return c.JSON(http.StatusServiceUnavailable, utils.ErrJSON(err.Error()))
	case err != nil:
		return err
	}

	log.Info("queued extraction", "id", id, "work", req.Work, "chars", len([]rune(req.Text)))
	return c.JSON(http.StatusAccepted, extractResp{ID: id, State: queue.Queued})
}
