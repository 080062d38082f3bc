package trade

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"traderesonance/server/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Route is the best buy-low/sell-high pair for one product
type Route struct {
	Product     string  `json:"product"`
	BuyCity     string  `json:"buy_city"`
	BuyPrice    float64 `json:"buy_price"`
	SellCity    string  `json:"sell_city"`
	SellPrice   float64 `json:"sell_price"`
	Spread      float64 `json:"spread"`
	ProfitPct   float64 `json:"profit_pct"`
	Cities      int     `json:"cities"`
	BuyEntryID  uint    `json:"buy_entry_id"`
	SellEntryID uint    `json:"sell_entry_id"`
}

type RouteOptions struct {
	// Product keeps products whose name contains it, case-insensitively
	Product string
	// ProductionOnly restricts the buy side to production cities
	ProductionOnly bool
	MinSpread      *float64
}

// ProductRoutes computes, for every product reported by at least two cities,
// the cheapest city to buy in and the dearest city to sell in. Equal prices
// go to the lexicographically smaller city name.
func ProductRoutes(entries []models.Entry, opts RouteOptions) []Route {
	needle := strings.ToLower(strings.TrimSpace(opts.Product))

	byProduct := make(map[string][]models.Entry)
	for _, e := range Latest(entries) {
		if needle != "" && !strings.Contains(strings.ToLower(e.Product), needle) {
			continue
		}
		byProduct[e.Product] = append(byProduct[e.Product], e)
	}

	routes := make([]Route, 0, len(byProduct))
	for product, rows := range byProduct {
		if len(rows) < 2 {
			continue
		}
		route, ok := productRoute(product, rows, opts.ProductionOnly)
		if !ok {
			continue
		}
		if opts.MinSpread != nil && route.Spread < *opts.MinSpread {
			continue
		}
		routes = append(routes, route)
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].ProfitPct != routes[j].ProfitPct {
			return routes[i].ProfitPct > routes[j].ProfitPct
		}
		return routes[i].Product < routes[j].Product
	})
	return routes
}

func productRoute(product string, rows []models.Entry, productionOnly bool) (Route, bool) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].City < rows[j].City })

	var buy *models.Entry
	for i := range rows {
		e := &rows[i]
		if productionOnly && !e.IsProductionCity {
			continue
		}
		if buy == nil || e.Price < buy.Price {
			buy = e
		}
	}
	if buy == nil {
		return Route{}, false
	}

	// with every price equal the sell side is the smallest other city
	var sell *models.Entry
	for i := range rows {
		e := &rows[i]
		if e.City == buy.City {
			continue
		}
		if sell == nil || e.Price > sell.Price {
			sell = e
		}
	}
	// a production-only buy side can leave no cheaper place to sell
	if sell == nil || sell.Price < buy.Price {
		return Route{}, false
	}

	buyPrice := decimal.NewFromFloat(buy.Price)
	sellPrice := decimal.NewFromFloat(sell.Price)
	spread, pct := margin(buyPrice, sellPrice)

	return Route{
		Product:     product,
		BuyCity:     buy.City,
		BuyPrice:    buy.Price,
		SellCity:    sell.City,
		SellPrice:   sell.Price,
		Spread:      spread.InexactFloat64(),
		ProfitPct:   pct.InexactFloat64(),
		Cities:      len(rows),
		BuyEntryID:  buy.ID,
		SellEntryID: sell.ID,
	}, true
}

// margin returns sell-buy and its percentage of buy rounded to two places.
// A zero buy price yields a zero percentage.
func margin(buy, sell decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	spread := sell.Sub(buy)
	if buy.IsZero() {
		return spread, decimal.Zero
	}
	return spread, spread.Div(buy).Mul(hundred).Round(2)
}

// Latest keeps the most recently touched entry of each trimmed (city,
// product) key, the highest id winning ties.
func Latest(entries []models.Entry) []models.Entry {
	index := make(map[models.EntryKey]int, len(entries))
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		e.City = strings.TrimSpace(e.City)
		e.Product = strings.TrimSpace(e.Product)
		key := e.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, e)
			continue
		}
		cur := out[i]
		ts, curTS := e.Timestamp(), cur.Timestamp()
		if ts.After(curTS) || (ts.Equal(curTS) && e.ID > cur.ID) {
			out[i] = e
		}
	}
	return out
}
