package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"traderesonance/server/internal/csvio"
	"traderesonance/server/internal/database"
	"traderesonance/server/internal/models"
	"traderesonance/server/internal/trade"
)

const (
	defaultPairsPerPage = 10
	maxPairsPerPage     = 100
	maxSuggestions      = 50
)

func (h *Handler) GetRoutes(c *gin.Context) {
	entries, err := h.db.AllEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to load entries for routes")
		return
	}

	routes := trade.ProductRoutes(entries, trade.RouteOptions{
		Product:        c.Query("product"),
		ProductionOnly: csvio.ParseBool(c.Query("buy_only_prod")),
		MinSpread:      queryFloat(c, "min_spread"),
	})
	c.JSON(http.StatusOK, gin.H{"routes": routes, "total": len(routes)})
}

func (h *Handler) GetPairRoutes(c *gin.Context) {
	entries, err := h.db.AllEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to load entries for routes")
		return
	}

	filters := trade.PairFilters{
		Product:        c.Query("product"),
		BuyCity:        c.Query("buy_city"),
		SellCity:       c.Query("sell_city"),
		BuyOnlyProd:    csvio.ParseBool(c.Query("buy_only_prod")),
		MinProfit:      queryFloat(c, "min_profit"),
		MinMargin:      queryFloat(c, "min_margin"),
		MinBuyPercent:  queryFloat(c, "min_buy_percent"),
		MinSellPercent: queryFloat(c, "min_sell_percent"),
		BuyTrend:       queryTrend(c, "buy_trend"),
		SellTrend:      queryTrend(c, "sell_trend"),
		MaxAge:         trade.ParseAge(queryInt(c, "max_age_value", 0, 0, 1<<20), c.DefaultQuery("max_age_unit", "h")),
		TopK:           queryInt(c, "k", trade.DefaultTopK, 1, 10),
		MinItems:       queryInt(c, "min_items", 1, 1, 1000),
		MaxItems:       queryInt(c, "max_items", trade.DefaultMaxItems, 1, 1000),
		SortBy:         strings.ToLower(strings.TrimSpace(c.Query("sort_by"))),
	}
	groups := trade.PairRoutes(entries, filters)

	perPage := queryInt(c, "per_page", defaultPairsPerPage, 1, maxPairsPerPage)
	pagination := database.NewPagination(queryInt(c, "page", 1, 1, 1<<30), perPage, int64(len(groups)))
	start := (pagination.Page - 1) * perPage
	end := min(start+perPage, len(groups))
	page := []trade.PairGroup{}
	if start < end {
		page = groups[start:end]
	}

	c.JSON(http.StatusOK, gin.H{"groups": page, "pagination": pagination})
}

// queryTrend returns the trend named in the query, or empty for any
func queryTrend(c *gin.Context, name string) models.Trend {
	raw := c.Query(name)
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	trend, ok := models.ParseTrend(raw)
	if !ok {
		return ""
	}
	return trend
}

func (h *Handler) GetCities(c *gin.Context) {
	entries, err := h.db.AllEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to load entries for cities")
		return
	}
	c.JSON(http.StatusOK, trade.CityGroups(entries, trade.ParseCityMode(c.Query("pf"))))
}

func (h *Handler) GetChart(c *gin.Context) {
	entries, err := h.db.AllEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to load entries for chart")
		return
	}
	c.JSON(http.StatusOK, trade.PriceChart(entries, c.Query("product")))
}

type Suggestion struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

func (h *Handler) SuggestProducts(c *gin.Context) {
	names, err := h.db.DistinctProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list products")
		return
	}
	c.JSON(http.StatusOK, suggestions(names, c.Query("q"), h.cfg.ProductImageBaseURL))
}

func (h *Handler) SuggestCities(c *gin.Context) {
	names, err := h.db.DistinctCities(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list cities")
		return
	}
	c.JSON(http.StatusOK, suggestions(names, c.Query("q"), ""))
}

// suggestions keeps names containing q, prefix matches first.
func suggestions(names []string, q, imageBase string) []Suggestion {
	q = strings.ToLower(strings.TrimSpace(q))
	var prefix, rest []Suggestion
	for _, name := range names {
		lower := strings.ToLower(name)
		if q != "" && !strings.Contains(lower, q) {
			continue
		}
		s := Suggestion{Name: name}
		if imageBase != "" {
			s.Image = strings.TrimRight(imageBase, "/") + "/" + url.PathEscape(name) + ".png"
		}
		if strings.HasPrefix(lower, q) {
			prefix = append(prefix, s)
		} else {
			rest = append(rest, s)
		}
	}
	out := append(make([]Suggestion, 0, len(prefix)+len(rest)), prefix...)
	out = append(out, rest...)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
