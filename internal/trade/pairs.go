package trade

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"traderesonance/server/internal/models"
)

const (
	DefaultTopK     = 3
	DefaultMaxItems = 50
)

var ageUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseAge turns a (value, unit) pair into a duration. Unknown units count
// as hours; a non-positive value means no limit.
func ParseAge(value int, unit string) time.Duration {
	if value <= 0 {
		return 0
	}
	d, ok := ageUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		d = time.Hour
	}
	return time.Duration(value) * d
}

// PairFilters narrows the city-pair view. Zero values disable a filter.
type PairFilters struct {
	Product        string
	BuyCity        string
	SellCity       string
	BuyOnlyProd    bool
	MinProfit      *float64
	MinMargin      *float64
	MinBuyPercent  *float64
	MinSellPercent *float64
	BuyTrend       models.Trend
	SellTrend      models.Trend
	MaxAge         time.Duration
	TopK           int
	MinItems       int
	MaxItems       int
	SortBy         string
	Now            time.Time
}

type PairItem struct {
	Product       string       `json:"product"`
	BuyPrice      float64      `json:"buy_price"`
	SellPrice     float64      `json:"sell_price"`
	Margin        float64      `json:"margin"`
	MarginPercent float64      `json:"margin_percent"`
	BuyEntryID    uint         `json:"buy_entry_id"`
	SellEntryID   uint         `json:"sell_entry_id"`
	BuyTrend      models.Trend `json:"buy_trend"`
	SellTrend     models.Trend `json:"sell_trend"`
	BuyPercent    float64      `json:"buy_percent"`
	SellPercent   float64      `json:"sell_percent"`
	BuyUpdated    time.Time    `json:"buy_updated"`
	SellUpdated   time.Time    `json:"sell_updated"`
}

// PairGroup is every profitable product between one buy city and one sell
// city. Items holds the top entries by margin; ItemsTotal counts all of them.
type PairGroup struct {
	BuyCity    string     `json:"buy_city"`
	SellCity   string     `json:"sell_city"`
	Items      []PairItem `json:"entries"`
	ItemsTotal int        `json:"items_total"`
	SumProfit  float64    `json:"sum_profit"`
	AvgMargin  float64    `json:"avg_margin"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

var pairSorts = map[string]func(a, b *PairGroup) int{
	"sum_profit_desc": func(a, b *PairGroup) int {
		return cmpDesc(a.SumProfit, b.SumProfit, a.AvgMargin, b.AvgMargin)
	},
	"avg_margin_desc": func(a, b *PairGroup) int {
		return cmpDesc(a.AvgMargin, b.AvgMargin, a.SumProfit, b.SumProfit)
	},
	"count_desc": func(a, b *PairGroup) int {
		return cmpDesc(float64(a.ItemsTotal), float64(b.ItemsTotal), a.SumProfit, b.SumProfit)
	},
	"fresh_desc": func(a, b *PairGroup) int {
		return cmpDesc(float64(a.UpdatedAt.UnixNano()), float64(b.UpdatedAt.UnixNano()), a.SumProfit, b.SumProfit)
	},
}

// PairRoutes lists, for every ordered pair of distinct cities, the products
// both report, with the margin of buying in the first and selling in the
// second. Groups come back filtered and sorted; paging is left to the caller.
func PairRoutes(entries []models.Entry, f PairFilters) []PairGroup {
	f = f.withDefaults()
	product := strings.ToLower(strings.TrimSpace(f.Product))
	buyNeedle := strings.ToLower(strings.TrimSpace(f.BuyCity))
	sellNeedle := strings.ToLower(strings.TrimSpace(f.SellCity))

	byCity := make(map[string]map[string]models.Entry)
	for _, e := range Latest(entries) {
		if product != "" && !strings.Contains(strings.ToLower(e.Product), product) {
			continue
		}
		if byCity[e.City] == nil {
			byCity[e.City] = make(map[string]models.Entry)
		}
		byCity[e.City][e.Product] = e
	}
	cities := make([]string, 0, len(byCity))
	for city := range byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var groups []PairGroup
	for _, buyCity := range cities {
		if buyNeedle != "" && !strings.Contains(strings.ToLower(buyCity), buyNeedle) {
			continue
		}
		buyProducts := byCity[buyCity]
		for _, sellCity := range cities {
			if sellCity == buyCity {
				continue
			}
			if sellNeedle != "" && !strings.Contains(strings.ToLower(sellCity), sellNeedle) {
				continue
			}
			items := pairItems(buyProducts, byCity[sellCity], f)
			if len(items) == 0 {
				continue
			}
			group := summarize(buyCity, sellCity, items, f.TopK)
			if group.ItemsTotal < f.MinItems || group.ItemsTotal > f.MaxItems {
				continue
			}
			groups = append(groups, group)
		}
	}

	compare, ok := pairSorts[f.SortBy]
	if !ok {
		compare = pairSorts["sum_profit_desc"]
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return compare(&groups[i], &groups[j]) < 0
	})
	return groups
}

func (f PairFilters) withDefaults() PairFilters {
	if f.TopK < 1 {
		f.TopK = DefaultTopK
	}
	if f.TopK > 10 {
		f.TopK = 10
	}
	if f.MinItems < 1 {
		f.MinItems = 1
	}
	if f.MaxItems < 1 {
		f.MaxItems = DefaultMaxItems
	}
	if f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return f
}

func pairItems(buyProducts, sellProducts map[string]models.Entry, f PairFilters) []PairItem {
	var items []PairItem
	for product, buy := range buyProducts {
		sell, ok := sellProducts[product]
		if !ok {
			continue
		}
		if f.BuyOnlyProd && !buy.IsProductionCity {
			continue
		}
		spread, pct := margin(decimal.NewFromFloat(buy.Price), decimal.NewFromFloat(sell.Price))
		item := PairItem{
			Product:       product,
			BuyPrice:      buy.Price,
			SellPrice:     sell.Price,
			Margin:        spread.InexactFloat64(),
			MarginPercent: pct.InexactFloat64(),
			BuyEntryID:    buy.ID,
			SellEntryID:   sell.ID,
			BuyTrend:      buy.Trend,
			SellTrend:     sell.Trend,
			BuyPercent:    buy.Percent,
			SellPercent:   sell.Percent,
			BuyUpdated:    buy.Timestamp(),
			SellUpdated:   sell.Timestamp(),
		}
		if !f.keep(item) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Margin != items[j].Margin {
			return items[i].Margin > items[j].Margin
		}
		return items[i].Product < items[j].Product
	})
	return items
}

func (f PairFilters) keep(item PairItem) bool {
	switch {
	case f.MinProfit != nil && item.Margin < *f.MinProfit:
		return false
	case f.MinMargin != nil && item.MarginPercent < *f.MinMargin:
		return false
	case f.MinBuyPercent != nil && item.BuyPercent < *f.MinBuyPercent:
		return false
	case f.MinSellPercent != nil && item.SellPercent < *f.MinSellPercent:
		return false
	case f.BuyTrend != "" && item.BuyTrend != f.BuyTrend:
		return false
	case f.SellTrend != "" && item.SellTrend != f.SellTrend:
		return false
	}
	if f.MaxAge > 0 {
		newest := item.BuyUpdated
		if item.SellUpdated.After(newest) {
			newest = item.SellUpdated
		}
		if f.Now.Sub(newest) > f.MaxAge {
			return false
		}
	}
	return true
}

func summarize(buyCity, sellCity string, items []PairItem, topK int) PairGroup {
	top := items
	if len(top) > topK {
		top = top[:topK]
	}

	sum := decimal.Zero
	pct := decimal.Zero
	var updated time.Time
	for _, item := range top {
		sum = sum.Add(decimal.NewFromFloat(item.Margin))
		pct = pct.Add(decimal.NewFromFloat(item.MarginPercent))
		if item.BuyUpdated.After(updated) {
			updated = item.BuyUpdated
		}
		if item.SellUpdated.After(updated) {
			updated = item.SellUpdated
		}
	}

	return PairGroup{
		BuyCity:    buyCity,
		SellCity:   sellCity,
		Items:      top,
		ItemsTotal: len(items),
		SumProfit:  sum.InexactFloat64(),
		AvgMargin:  pct.Div(decimal.NewFromInt(int64(len(top)))).Round(2).InexactFloat64(),
		UpdatedAt:  updated,
	}
}

func cmpDesc(a1, b1, a2, b2 float64) int {
	switch {
	case a1 > b1:
		return -1
	case a1 < b1:
		return 1
	case a2 > b2:
		return -1
	case a2 < b2:
		return 1
	}
	return 0
}
