package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/mindfuse/internal/assessment"
	"github.com/mbd888/mindfuse/internal/audit"
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/logging"
	"github.com/mbd888/mindfuse/internal/pagination"
	"github.com/mbd888/mindfuse/internal/profile"
)

// profileHistoryPreview bounds how much history GET /v1/profiles/:userId
// inlines; the history endpoint serves the rest.
const profileHistoryPreview = 10

// analyzeRequest is the POST /v1/analyze body. Both modalities are
// optional, but at least one must carry a usable signal.
type analyzeRequest struct {
	UserID string                 `json:"userId" binding:"required"`
	Text   *assessment.TextInput  `json:"text,omitempty"`
	Image  *assessment.ImageInput `json:"image,omitempty"`
}

// analyzeHandler handles POST /v1/analyze
func (s *Server) analyzeHandler(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be JSON with a userId field",
		})
		return
	}

	a, err := s.assessSvc.Evaluate(c.Request.Context(), req.UserID, req.Text, req.Image)
	if err != nil {
		var ie *assessment.InputError
		if errors.As(err, &ie) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "invalid_input",
				"message": ie.Reason,
			})
			return
		}
		logging.L(c.Request.Context()).Error("evaluation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "evaluation_error",
			"message": "The evaluation could not be completed",
		})
		return
	}

	c.JSON(http.StatusOK, a)
}

// getProfileHandler handles GET /v1/profiles/:userId
func (s *Server) getProfileHandler(c *gin.Context) {
	userID := c.Param("userId")

	p, err := s.store.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "profile_not_found",
				"message": "No profile exists for this user",
			})
			return
		}
		logging.L(c.Request.Context()).Error("profile lookup failed", "error", err, "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to load the profile",
		})
		return
	}

	totalEntries := len(p.History)
	p.History = p.Recent(profileHistoryPreview)

	c.JSON(http.StatusOK, gin.H{
		"profile":        p,
		"historyEntries": totalEntries,
	})
}

// getHistoryHandler handles GET /v1/profiles/:userId/history with
// cursor pagination, newest first.
func (s *Server) getHistoryHandler(c *gin.Context) {
	userID := c.Param("userId")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be an integer between 1 and 200",
			})
			return
		}
		limit = n
	}

	page := profile.HistoryPage{Limit: limit}
	if cur, err := pagination.Decode(c.Query("cursor")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "The cursor is not valid",
		})
		return
	} else if cur != nil {
		page.Before = cur.CreatedAt
		page.BeforeID = cur.ID
	}

	entries, hasMore, err := s.store.History(c.Request.Context(), userID, page)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "profile_not_found",
				"message": "No profile exists for this user",
			})
			return
		}
		logging.L(c.Request.Context()).Error("history lookup failed", "error", err, "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to load the history",
		})
		return
	}

	nextCursor := ""
	if hasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		nextCursor = pagination.Encode(last.Timestamp, last.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":    entries,
		"nextCursor": nextCursor,
		"hasMore":    hasMore,
	})
}

// deleteProfileHandler handles DELETE /v1/profiles/:userId (data erasure)
func (s *Server) deleteProfileHandler(c *gin.Context) {
	userID := c.Param("userId")

	if err := s.store.Reset(c.Request.Context(), userID); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "profile_not_found",
				"message": "No profile exists for this user",
			})
			return
		}
		logging.L(c.Request.Context()).Error("profile erasure failed", "error", err, "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to delete the profile",
		})
		return
	}

	s.auditSvc.Log(c.Request.Context(), "user", audit.ActionDeleteProfile, userID, "profile erased on request")
	c.Status(http.StatusNoContent)
}

// guidanceHandler handles GET /v1/guidance/:emotion. An optional
// ?category= query selects the stress category; the default sits in
// the middle of the range.
func (s *Server) guidanceHandler(c *gin.Context) {
	label := emotion.Canonical(c.Param("emotion"))

	category := emotion.ModerateStress
	if raw := c.Query("category"); raw != "" {
		parsed, ok := parseStressCategory(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_category",
				"message": "category must be one of: none, low, moderate, high, severe",
			})
			return
		}
		category = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"emotion":        label,
		"stressCategory": category,
		"guidance":       emotion.GuidanceFor(label, category),
	})
}

// parseStressCategory maps the short query form to a category.
func parseStressCategory(raw string) (emotion.StressCategory, bool) {
	switch raw {
	case "none":
		return emotion.NoApparentStress, true
	case "low":
		return emotion.LowStress, true
	case "moderate":
		return emotion.ModerateStress, true
	case "high":
		return emotion.HighStress, true
	case "severe":
		return emotion.SevereStress, true
	default:
		return "", false
	}
}

// statsHandler handles GET /v1/stats
func (s *Server) statsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		logging.L(ctx).Error("stats lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to aggregate platform stats",
		})
		return
	}

	liveAlerts, err := s.alertSvc.CountLive(ctx)
	if err != nil {
		logging.L(ctx).Warn("live alert count failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": stats,
		"alerts":   gin.H{"live": liveAlerts},
		"realtime": s.realtimeHub.Stats(),
	})
}
