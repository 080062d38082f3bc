package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/i18n"
	"traderesonance/server/internal/models"
	"traderesonance/server/internal/session"
)

func (h *Handler) ListRequests(c *gin.Context) {
	status := models.RequestStatus(c.DefaultQuery("status", string(models.RequestPending)))
	if status == "all" {
		status = ""
	}
	requests, err := h.db.ListRequests(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err, "Failed to list requests")
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	entry, err := h.db.ApproveRequest(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to approve request")
		return
	}

	h.reconcile(ctx)
	h.logger.WithFields(logrus.Fields{"request": id, "entry": entry.ID}).Info("Approved entry request")
	h.events.Publish(models.EntryEvent{Kind: models.EventUpdated, Entry: entry})
	session.AddFlash(c, session.LevelSuccess, "approved", nil)
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) RejectRequest(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, err := h.db.RejectRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to reject request")
		return
	}
	h.logger.WithField("request", id).Info("Rejected entry request")
	session.AddFlash(c, session.LevelInfo, "rejected", nil)
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Dedupe(c *gin.Context) {
	result, err := h.db.DedupeEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to dedupe entries")
		return
	}
	if result.Removed > 0 {
		h.events.Publish(models.EntryEvent{Kind: models.EventDeduped, Count: result.Removed})
	}
	session.AddFlash(c, session.LevelSuccess, "deduped", map[string]string{"n": strconv.Itoa(result.Removed)})
	c.JSON(http.StatusOK, gin.H{
		"scanned": result.Scanned,
		"removed": result.Removed,
		"message": i18n.Format(session.Lang(c), "deduped", map[string]string{"n": strconv.Itoa(result.Removed)}),
	})
}
