package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"traderesonance/server/config"
	"traderesonance/server/internal/database"
	"traderesonance/server/internal/i18n"
	"traderesonance/server/internal/models"
	"traderesonance/server/internal/queue"
	"traderesonance/server/internal/session"
)

type Handler struct {
	db     *database.Database
	logger *logrus.Logger
	cfg    *config.Config
	events *queue.EventQueue
}

func NewHandler(db *database.Database, cfg *config.Config, events *queue.EventQueue, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	registerValidators()

	return &Handler{
		db:     db,
		logger: logger,
		cfg:    cfg,
		events: events,
	}
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Error("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetFlash(c *gin.Context) {
	c.JSON(http.StatusOK, session.Consume(c))
}

func (h *Handler) GetStrings(c *gin.Context) {
	lang := session.Lang(c)
	c.JSON(http.StatusOK, gin.H{
		"lang":    lang,
		"strings": i18n.Table(lang),
	})
}

// reconcile runs the dedup pass after a write. The unique constraint already
// guards the table, so a failure here is logged and not returned.
func (h *Handler) reconcile(ctx context.Context) {
	result, err := h.db.DedupeEntries(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to dedupe entries after write")
		return
	}
	if result.Removed > 0 {
		h.events.Publish(models.EntryEvent{Kind: models.EventDeduped, Count: result.Removed})
	}
}

// fail maps store errors onto responses and logs anything unexpected.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	lang := session.Lang(c)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": i18n.T(lang, "not_found")})
	case errors.Is(err, database.ErrRequestClosed):
		c.JSON(http.StatusConflict, gin.H{"error": i18n.T(lang, "cannot_edit")})
	default:
		h.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": i18n.T(session.Lang(c), "not_found")})
		return 0, false
	}
	return uint(id), true
}

// queryFloat returns nil for a missing or unparsable value
func queryFloat(c *gin.Context, name string) *float64 {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// queryInt returns def for a missing or unparsable value, clamped to [lo, hi]
func queryInt(c *gin.Context, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		v = def
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
