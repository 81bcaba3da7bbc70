package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

func (s *Server) handleQueueList(c *gin.Context) {
	var statuses []queue.Status
	for _, value := range c.QueryArray("status") {
		status, ok := queue.ParseStatus(value)
		if !ok {
			jsonError(c, http.StatusBadRequest, fmt.Sprintf("unknown queue status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.queue.Items(statuses...)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*queue.Item{}
	}
	c.JSON(http.StatusOK, QueueListResponse{Items: items, Count: len(items)})
}

func (s *Server) handleQueueStatus(c *gin.Context) {
	snap, err := s.queue.Snapshot()
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, FromSnapshot(snap))
}

func (s *Server) handleQueuePause(c *gin.Context) {
	s.queue.Pause()
	s.logger.Info("queue paused")
	c.JSON(http.StatusOK, gin.H{"message": "queue paused"})
}

func (s *Server) handleQueueResume(c *gin.Context) {
	s.queue.Resume()
	s.logger.Info("queue resumed")
	c.JSON(http.StatusOK, gin.H{"message": "queue resumed"})
}

func (s *Server) handleQueueClear(c *gin.Context) {
	removed, err := s.queue.Clear()
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("queue cleared", logging.Int("removed", removed))
	c.JSON(http.StatusOK, gin.H{"message": "queue cleared", "removed": removed})
}

func (s *Server) handleQueueRemove(c *gin.Context) {
	id := c.Param("id")
	item, err := s.queue.Get(id)
	if err != nil {
		s.respondQueueError(c, err)
		return
	}
	if item.Status == queue.StatusProcessing {
		jsonError(c, http.StatusConflict, "item is processing")
		return
	}
	if err := s.queue.Remove(id); err != nil {
		s.respondQueueError(c, err)
		return
	}
	s.logger.Info("queue item removed", logging.String(logging.FieldItemID, id))
	c.JSON(http.StatusOK, gin.H{"message": "item removed from queue"})
}

func (s *Server) handleQueuePriority(c *gin.Context) {
	var req struct {
		Priority *int `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Priority == nil {
		jsonError(c, http.StatusBadRequest, "priority is required")
		return
	}
	item, err := s.queue.SetPriority(c.Param("id"), *req.Priority)
	if err != nil {
		s.respondQueueError(c, err)
		return
	}
	s.logger.Info("queue priority updated",
		logging.String(logging.FieldItemID, item.ID),
		logging.Int("priority", item.Priority),
	)
	c.JSON(http.StatusOK, item)
}

func (s *Server) respondQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		jsonError(c, http.StatusNotFound, "queue item not found")
	case errors.Is(err, queue.ErrInvalidTransition):
		jsonError(c, http.StatusConflict, err.Error())
	default:
		jsonError(c, http.StatusInternalServerError, err.Error())
	}
}
