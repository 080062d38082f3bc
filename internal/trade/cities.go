package trade

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"traderesonance/server/internal/models"
)

// CityMode selects which entries a city summary keeps
type CityMode string

const (
	CityModeAny        CityMode = "any"
	CityModeOnlyProd   CityMode = "only_prod"
	CityModeOnlyNoProd CityMode = "only_nonprod"
)

// ParseCityMode maps the pf query value to a mode, defaulting to any.
func ParseCityMode(s string) CityMode {
	switch mode := CityMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case CityModeOnlyProd, CityModeOnlyNoProd:
		return mode
	default:
		return CityModeAny
	}
}

func (m CityMode) allow(isProduction bool) bool {
	switch m {
	case CityModeOnlyProd:
		return isProduction
	case CityModeOnlyNoProd:
		return !isProduction
	default:
		return true
	}
}

type CityGroup struct {
	City         string         `json:"city"`
	Entries      []models.Entry `json:"entries"`
	Produces     []string       `json:"produces"`
	AveragePrice float64        `json:"average_price"`
}

// CityGroups summarises the latest entries per city, cities ordered
// case-insensitively and entries by product.
func CityGroups(entries []models.Entry, mode CityMode) []CityGroup {
	byCity := make(map[string][]models.Entry)
	for _, e := range Latest(entries) {
		if !mode.allow(e.IsProductionCity) {
			continue
		}
		byCity[e.City] = append(byCity[e.City], e)
	}

	groups := make([]CityGroup, 0, len(byCity))
	for city, rows := range byCity {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Product < rows[j].Product })

		total := decimal.Zero
		produces := []string{}
		for _, e := range rows {
			total = total.Add(decimal.NewFromFloat(e.Price))
			if e.IsProductionCity {
				produces = append(produces, e.Product)
			}
		}
		avg := total.Div(decimal.NewFromInt(int64(len(rows)))).Round(2)

		groups = append(groups, CityGroup{
			City:         city,
			Entries:      rows,
			Produces:     produces,
			AveragePrice: avg.InexactFloat64(),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := strings.ToLower(groups[i].City), strings.ToLower(groups[j].City)
		if a != b {
			return a < b
		}
		return groups[i].City < groups[j].City
	})
	return groups
}
