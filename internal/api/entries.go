package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/csvio"
	"traderesonance/server/internal/database"
	"traderesonance/server/internal/i18n"
	"traderesonance/server/internal/models"
	"traderesonance/server/internal/session"
)

// maxUploadSize bounds the CSV accepted by the import endpoint
const maxUploadSize = 10 << 20

var exportTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

func entryFilters(c *gin.Context) database.EntryFilters {
	prod := strings.ToLower(strings.TrimSpace(c.Query("prod")))
	if prod != "yes" && prod != "no" {
		prod = "any"
	}
	return database.EntryFilters{
		City:       strings.TrimSpace(c.Query("city")),
		Product:    strings.TrimSpace(c.Query("product")),
		Trend:      strings.TrimSpace(c.Query("trend")),
		PriceMin:   queryFloat(c, "price_min"),
		PriceMax:   queryFloat(c, "price_max"),
		PercentMin: queryFloat(c, "percent_min"),
		PercentMax: queryFloat(c, "percent_max"),
		Production: prod,
		Sort:       strings.TrimSpace(c.Query("sort")),
	}
}

func (h *Handler) ListEntries(c *gin.Context) {
	page := queryInt(c, "page", 1, 1, 1<<30)
	perPage := queryInt(c, "per_page", database.DefaultPerPage, 1, database.MaxPerPage)

	result, err := h.db.ListEntries(c.Request.Context(), entryFilters(c), page, perPage)
	if err != nil {
		h.fail(c, err, "Failed to list entries")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetEntry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entry, err := h.db.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// EditEntry returns the entry with any prefill values carried in the query,
// which is where a rejected duplicate submission lands.
func (h *Handler) EditEntry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entry, err := h.db.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get entry")
		return
	}

	overrides := gin.H{}
	if v := queryFloat(c, "price"); v != nil {
		overrides["price"] = *v
	}
	if v := queryFloat(c, "percent"); v != nil {
		overrides["percent"] = *v
	}
	if trend, ok := models.ParseTrend(c.Query("trend")); ok && c.Query("trend") != "" {
		overrides["trend"] = trend
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "overrides": overrides})
}

func (h *Handler) CreateEntry(c *gin.Context) {
	lang := session.Lang(c)
	var input EntryInput
	if fields, err := bindEntry(c, &input, &input.IsProductionCity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "invalid_input"), "fields": fields})
		return
	}
	ctx := c.Request.Context()
	fields := input.Fields()

	if h.cfg.ModerationEnabled {
		h.submitRequest(c, fields)
		return
	}

	entry, err := h.db.CreateEntry(ctx, fields)
	var exists *database.EntryExistsError
	if errors.As(err, &exists) {
		h.redirectToExisting(c, exists.Existing, fields)
		return
	}
	if err != nil {
		h.fail(c, err, "Failed to create entry")
		return
	}

	h.reconcile(ctx)
	h.events.Publish(models.EntryEvent{Kind: models.EventCreated, Entry: entry})
	session.AddFlash(c, session.LevelSuccess, "saved", nil)
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) submitRequest(c *gin.Context, fields models.EntryFields) {
	ctx := c.Request.Context()
	existing, err := h.db.FindEntryByKey(ctx, fields.City, fields.Product)
	if err == nil {
		h.redirectToExisting(c, existing, fields)
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		h.fail(c, err, "Failed to look up entry")
		return
	}

	req, err := h.db.CreateRequest(ctx, fields, c.ClientIP())
	if err != nil {
		h.fail(c, err, "Failed to create request")
		return
	}
	h.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"city":       req.City,
		"product":    req.Product,
	}).Info("Entry request submitted")
	session.AddFlash(c, session.LevelInfo, "request_submitted", nil)
	c.JSON(http.StatusAccepted, req)
}

// redirectToExisting sends a duplicate submission to the edit view of the
// row that owns the key, carrying the submitted values as prefill.
func (h *Handler) redirectToExisting(c *gin.Context, existing *models.Entry, submitted models.EntryFields) {
	lang := session.Lang(c)
	q := url.Values{}
	q.Set("price", strconv.FormatFloat(submitted.Price, 'f', -1, 64))
	q.Set("percent", strconv.FormatFloat(submitted.Percent, 'f', -1, 64))
	q.Set("trend", string(submitted.Trend))
	q.Set("lang", lang)

	session.AddFlash(c, session.LevelWarning, "edit_existing", nil)
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/api/entries/%d/edit?%s", existing.ID, q.Encode()))
}

func (h *Handler) UpdateEntry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input EntryUpdate
	if fields, err := bindEntry(c, &input, &input.IsProductionCity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(session.Lang(c), "invalid_input"), "fields": fields})
		return
	}

	ctx := c.Request.Context()
	entry, err := h.db.UpdateEntry(ctx, id, input.Fields())
	if err != nil {
		h.fail(c, err, "Failed to update entry")
		return
	}

	h.reconcile(ctx)
	h.events.Publish(models.EntryEvent{Kind: models.EventUpdated, Entry: entry})
	session.AddFlash(c, session.LevelSuccess, "updated", nil)
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) DeleteEntry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entry, err := h.db.DeleteEntry(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to delete entry")
		return
	}

	h.events.Publish(models.EntryEvent{Kind: models.EventDeleted, Entry: entry})
	session.AddFlash(c, session.LevelSuccess, "deleted", nil)
	c.JSON(http.StatusOK, gin.H{"deleted": entry.ID})
}

func (h *Handler) ExportEntries(c *gin.Context) {
	from := parseExportTime(c.Query("from"))
	to := parseExportTime(c.Query("to"))

	entries, err := h.db.ExportEntries(c.Request.Context(), entryFilters(c), from, to)
	if err != nil {
		h.fail(c, err, "Failed to export entries")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="entries.csv"`)
	c.Status(http.StatusOK)
	if err := csvio.Encode(c.Writer, entries); err != nil {
		h.logger.WithError(err).Error("Failed to write csv export")
	}
}

func parseExportTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range exportTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type importReport struct {
	Inserted int              `json:"inserted"`
	Updated  int              `json:"updated"`
	Skipped  int              `json:"skipped"`
	Removed  int              `json:"removed"`
	Errors   []csvio.RowError `json:"errors"`
	Message  string           `json:"message"`
}

func (h *Handler) ImportEntries(c *gin.Context) {
	lang := session.Lang(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "choose_file")})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.fail(c, err, "Failed to open uploaded file")
		return
	}
	defer file.Close()

	parsed, err := csvio.Decode(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	stats, err := h.db.ImportEntries(ctx, parsed.Rows)
	if err != nil {
		h.fail(c, err, "Failed to import entries")
		return
	}

	report := importReport{
		Inserted: stats.Inserted,
		Updated:  stats.Updated,
		Skipped:  stats.Skipped + len(parsed.Errors),
		Removed:  stats.Removed,
		Errors:   parsed.Errors,
	}
	if report.Errors == nil {
		report.Errors = []csvio.RowError{}
	}
	args := map[string]string{
		"inserted": strconv.Itoa(report.Inserted),
		"updated":  strconv.Itoa(report.Updated),
		"skipped":  strconv.Itoa(report.Skipped),
	}
	report.Message = i18n.Format(lang, "import_summary", args)

	h.logger.WithFields(logrus.Fields{
		"file":     header.Filename,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
		"removed":  report.Removed,
	}).Info("Imported entries")

	h.events.Publish(models.EntryEvent{Kind: models.EventImported, Count: report.Inserted + report.Updated})
	session.AddFlash(c, session.LevelSuccess, "import_summary", args)
	c.JSON(http.StatusOK, report)
}
