package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Normalizer rewrites a raw cell into canonical form. Returning an error
// marks the row invalid for this column.
type Normalizer func(raw string) (string, error)

// ExistsCheck verifies a foreign reference. Implementations hit the
// persistence layer.
type ExistsCheck func(ctx context.Context, value string) (bool, error)

// ColumnRule is one declarative validation over a normalized column.
type ColumnRule struct {
	Column    string
	Required  bool
	Pattern   *regexp.Regexp
	Enum      []string
	MinLen    int
	MaxLen    int
	Min       *float64
	Max       *float64
	Normalize Normalizer
	Exists    ExistsCheck
}

// Row is one data row keyed by normalized header, with its 1-based
// spreadsheet row number.
type Row struct {
	Number int
	Cells  map[string]string
}

// RowResult is the validation outcome for one row.
type RowResult struct {
	RowNumber int               `json:"row_number"`
	Key       string            `json:"key"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Values    map[string]string `json:"-"`
	Canceled  bool              `json:"-"`
}

// Valid reports whether the row may be persisted.
func (r *RowResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends a field-level error.
func (r *RowResult) AddError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning appends a field-level warning.
func (r *RowResult) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ApplyRules validates and normalizes the row against the rule set. The
// normalized values are written back into the result.
func ApplyRules(ctx context.Context, row Row, rules []ColumnRule) *RowResult {
	result := &RowResult{RowNumber: row.Number, Values: make(map[string]string, len(row.Cells))}
	for k, v := range row.Cells {
		result.Values[k] = CoerceCell(v)
	}

	for _, rule := range rules {
		value := result.Values[rule.Column]

		if value == "" {
			if rule.Required {
				result.AddError("%s: value is required", rule.Column)
			}
			continue
		}

		if rule.Normalize != nil {
			normalized, err := rule.Normalize(value)
			if err != nil {
				result.AddError("%s: %v", rule.Column, err)
				continue
			}
			value = normalized
			result.Values[rule.Column] = normalized
		}

		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			result.AddError("%s: %q does not match the expected format", rule.Column, value)
			continue
		}
		if len(rule.Enum) > 0 && !containsFold(rule.Enum, value) {
			result.AddError("%s: %q is not one of %s", rule.Column, value, strings.Join(rule.Enum, ", "))
			continue
		}
		if rule.MinLen > 0 && len(value) < rule.MinLen {
			result.AddError("%s: shorter than %d characters", rule.Column, rule.MinLen)
			continue
		}
		if rule.MaxLen > 0 && len(value) > rule.MaxLen {
			result.AddError("%s: longer than %d characters", rule.Column, rule.MaxLen)
			continue
		}
		if rule.Min != nil || rule.Max != nil {
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				result.AddError("%s: %q is not numeric", rule.Column, value)
				continue
			}
			if rule.Min != nil && n < *rule.Min {
				result.AddError("%s: %v is below the minimum %v", rule.Column, n, *rule.Min)
				continue
			}
			if rule.Max != nil && n > *rule.Max {
				result.AddError("%s: %v is above the maximum %v", rule.Column, n, *rule.Max)
				continue
			}
		}
		if rule.Exists != nil {
			ok, err := rule.Exists(ctx, value)
			if err != nil {
				result.AddError("%s: reference check failed: %v", rule.Column, err)
				continue
			}
			if !ok {
				result.AddError("%s: %q does not exist", rule.Column, value)
			}
		}
	}

	return result
}

// IsCanceledRow reports whether every key cell equals "-", the convention
// for canceled registry entries. They are ingested inactive, not rejected.
func IsCanceledRow(row Row, keyColumns []string) bool {
	if len(keyColumns) == 0 {
		return false
	}
	for _, col := range keyColumns {
		if strings.TrimSpace(row.Cells[col]) != "-" {
			return false
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
