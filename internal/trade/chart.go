package trade

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"traderesonance/server/internal/models"
)

const averageLabel = "Avg Price"

type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Chart is the {labels, datasets} payload the client chart renders
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// PriceChart plots one value per city. With a product it is that product's
// price in each city reporting it; otherwise the city's average price.
func PriceChart(entries []models.Entry, product string) Chart {
	product = strings.TrimSpace(product)

	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for _, e := range Latest(entries) {
		if product != "" && !strings.EqualFold(e.Product, product) {
			continue
		}
		sums[e.City] = sums[e.City].Add(decimal.NewFromFloat(e.Price))
		counts[e.City]++
	}

	chart := Chart{Labels: make([]string, 0, len(sums))}
	for city := range sums {
		chart.Labels = append(chart.Labels, city)
	}
	sort.Strings(chart.Labels)

	label := averageLabel
	if product != "" {
		label = product
	}
	data := make([]float64, 0, len(chart.Labels))
	for _, city := range chart.Labels {
		avg := sums[city].Div(decimal.NewFromInt(counts[city])).Round(2)
		data = append(data, avg.InexactFloat64())
	}
	chart.Datasets = []Dataset{{Label: label, Data: data}}
	return chart
}
