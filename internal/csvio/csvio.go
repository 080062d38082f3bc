package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"traderesonance/server/internal/models"
)

// ExportHeader is the column order written by Encode
var ExportHeader = []string{
	"id", "created_at", "updated_at", "city", "product",
	"price", "trend", "percent", "is_production_city",
}

var requiredColumns = []string{"city", "product", "price"}

var truthy = map[string]bool{
	"1": true, "true": true, "on": true, "yes": true, "y": true, "да": true,
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var ErrEmptyFile = errors.New("csv file is empty")

// RowError describes a row that was skipped. Line is 1-based and counts the
// header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result holds the rows that parsed and the ones that did not
type Result struct {
	Rows   []models.EntryFields
	Errors []RowError
}

// Decode reads a header driven CSV of entries. A broken header fails the
// whole file; a broken row is reported in Result.Errors and skipped.
func Decode(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header is missing columns: %s", strings.Join(missing, ", "))
	}

	result := &Result{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, RowError{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(record) {
			continue
		}

		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		fields, err := parseRow(get)
		if err != nil {
			line, _ := reader.FieldPos(0)
			result.Errors = append(result.Errors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		result.Rows = append(result.Rows, fields)
	}
	return result, nil
}

func parseRow(get func(string) string) (models.EntryFields, error) {
	fields := models.EntryFields{
		City:    get("city"),
		Product: get("product"),
	}
	if fields.City == "" {
		return fields, errors.New("city is required")
	}
	if fields.Product == "" {
		return fields, errors.New("product is required")
	}

	raw := get("price")
	if raw == "" {
		return fields, errors.New("price is required")
	}
	price, err := parseNumber(raw)
	if err != nil {
		return fields, fmt.Errorf("price %q is not a number", raw)
	}
	if price < 0 {
		return fields, fmt.Errorf("price %q is negative", raw)
	}
	fields.Price = price

	if raw := get("percent"); raw != "" {
		percent, err := parseNumber(raw)
		if err != nil {
			return fields, fmt.Errorf("percent %q is not a number", raw)
		}
		fields.Percent = percent
	}

	trend, ok := models.ParseTrend(get("trend"))
	if !ok {
		return fields, fmt.Errorf("unknown trend %q", get("trend"))
	}
	fields.Trend = trend
	fields.IsProductionCity = ParseBool(get("is_production_city"))
	fields.CreatedAt = parseTime(get("created_at"))
	fields.UpdatedAt = parseTime(get("updated_at"))
	return fields, nil
}

// ParseBool reports whether s is one of the accepted truthy spellings.
func ParseBool(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Encode writes entries in the export column order.
func Encode(w io.Writer, entries []models.Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			formatTime(e.CreatedAt),
			formatTime(e.UpdatedAt),
			e.City,
			e.Product,
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			string(e.Trend),
			strconv.FormatFloat(e.Percent, 'f', -1, 64),
			strconv.FormatBool(e.IsProductionCity),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
