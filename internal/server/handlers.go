package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service"
	"github.com/postwave/postwave/pkg/util"
)

// respondError translates service errors into HTTP status codes. Validation
// failures are a client problem, missing jobs a 404 and illegal state
// transitions a 409.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var req service.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	job, err := s.Lifecycle.CreatePost(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (s *Server) handleListPosts(c *gin.Context) {
	ownerID := c.Query("owner")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner query parameter is required"})
		return
	}

	from, to, err := util.ParseTimeRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := s.Lifecycle.ListJobsByOwner(c.Request.Context(), ownerID, from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": jobs, "count": len(jobs)})
}

func (s *Server) handleGetPost(c *gin.Context) {
	job, err := s.Lifecycle.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

type editPostRequest struct {
	Platforms []string          `json:"platforms" binding:"required,min=1"`
	Content   map[string]string `json:"content" binding:"required,min=1"`
}

func (s *Server) handleEditPost(c *gin.Context) {
	var req editPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.Lifecycle.EditPost(c.Request.Context(), c.Param("id"), req.Content, req.Platforms); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post updated"})
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

func (s *Server) handleReschedulePost(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.Lifecycle.ReschedulePost(c.Request.Context(), c.Param("id"), req.ScheduledAt); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post rescheduled"})
}

func (s *Server) handleCancelPost(c *gin.Context) {
	if err := s.Lifecycle.CancelPost(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post cancelled"})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	if err := s.Lifecycle.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

func (s *Server) handleGetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"limits": s.Lifecycle.CharacterLimits()})
}

func (s *Server) handleSuggestHashtags(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword query parameter is required"})
		return
	}

	tags, err := s.Hashtags.Suggest(c.Request.Context(), keyword)
	if err != nil {
		if errors.Is(err, service.ErrHashtagsDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"keyword": keyword, "hashtags": tags})
}

func (s *Server) handleMonitoringSummary(c *gin.Context) {
	stats, err := s.Monitoring.GetSummary()
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleMonitoringErrors(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	logs, err := s.Monitoring.GetRecentErrors(limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"errors": logs, "count": len(logs)})
}
