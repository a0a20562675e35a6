package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/mindfuse/internal/alerts"
	"github.com/mbd888/mindfuse/internal/audit"
	"github.com/mbd888/mindfuse/internal/logging"
	"github.com/mbd888/mindfuse/internal/metrics"
	"github.com/mbd888/mindfuse/internal/profile"
)

// adminActor labels audit records for token-authenticated admin calls.
// Per-admin identity would need real accounts; the single shared token
// only proves "an admin did this".
const adminActor = "admin"

// listHighRiskHandler handles GET /v1/admin/high-risk
func (s *Server) listHighRiskHandler(c *gin.Context) {
	flagged, err := s.store.ListFlagged(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("high-risk listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to list high-risk profiles",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": flagged,
		"count":    len(flagged),
	})
}

// clearHighRiskHandler handles POST /v1/admin/high-risk/:userId/clear
func (s *Server) clearHighRiskHandler(c *gin.Context) {
	userID := c.Param("userId")
	ctx := c.Request.Context()

	if err := s.store.SetHighRisk(ctx, userID, false, ""); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "profile_not_found",
				"message": "No profile exists for this user",
			})
			return
		}
		logging.L(ctx).Error("flag clear failed", "error", err, "userId", userID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to clear the high-risk flag",
		})
		return
	}

	metrics.HighRiskFlagsCleared.WithLabelValues("admin").Inc()
	s.auditSvc.Log(ctx, adminActor, audit.ActionClearHighRiskFlag, userID, "high-risk flag cleared")
	s.realtimeHub.BroadcastFlagChange(userID, false, "cleared by admin")

	c.JSON(http.StatusOK, gin.H{
		"userId":  userID,
		"flagged": false,
	})
}

// listAlertsHandler handles GET /v1/admin/alerts
func (s *Server) listAlertsHandler(c *gin.Context) {
	q := alerts.ListQuery{
		Status: alerts.Status(c.Query("status")),
		UserID: c.Query("userId"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be an integer between 1 and 200",
			})
			return
		}
		q.Limit = n
	}

	list, err := s.alertSvc.List(c.Request.Context(), q)
	if err != nil {
		logging.L(c.Request.Context()).Error("alert listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to list alerts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"count":  len(list),
	})
}

// acknowledgeAlertHandler handles POST /v1/admin/alerts/:id/acknowledge
func (s *Server) acknowledgeAlertHandler(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	a, err := s.alertSvc.Acknowledge(ctx, id)
	if err != nil {
		s.writeAlertError(c, err)
		return
	}

	s.auditSvc.Log(ctx, adminActor, audit.ActionAcknowledgeAlert, a.UserID, "alert "+id+" acknowledged")
	c.JSON(http.StatusOK, a)
}

// resolveAlertHandler handles POST /v1/admin/alerts/:id/resolve
func (s *Server) resolveAlertHandler(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	a, err := s.alertSvc.Resolve(ctx, id)
	if err != nil {
		s.writeAlertError(c, err)
		return
	}

	s.auditSvc.Log(ctx, adminActor, audit.ActionResolveAlert, a.UserID, "alert "+id+" resolved")
	c.JSON(http.StatusOK, a)
}

func (s *Server) writeAlertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alerts.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "alert_not_found",
			"message": "No alert exists with this id",
		})
	case errors.Is(err, alerts.ErrAlertResolved):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "alert_resolved",
			"message": "The alert is already resolved",
		})
	case errors.Is(err, alerts.ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_status",
			"message": "The alert is not in a state that allows this operation",
		})
	default:
		logging.L(c.Request.Context()).Error("alert operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "The alert operation failed",
		})
	}
}

// listAuditHandler handles GET /v1/admin/audit
func (s *Server) listAuditHandler(c *gin.Context) {
	q := audit.ListQuery{
		Actor:  c.Query("actor"),
		Action: audit.Action(c.Query("action")),
		UserID: c.Query("userId"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be an integer between 1 and 200",
			})
			return
		}
		q.Limit = n
	}

	records, err := s.auditSvc.List(c.Request.Context(), q)
	if err != nil {
		logging.L(c.Request.Context()).Error("audit listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "store_error",
			"message": "Failed to list audit records",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}
