// Package breach defines the normalized breach record shared by every provider
// adapter, along with the helpers and error types that surround it
package breach

import (
	"strings"
	"time"
)

// Default field values used when a provider omits a field
const (
	Unknown            = "Unknown"
	DefaultDescription = "No description"
)

// Record is one detected data breach affecting an account, in the schema
// every provider adapter normalizes into
type Record struct {
	ServiceName string `json:"service_name"`
	BreachDate  string `json:"breach_date"`
	Location    string `json:"location"`
	DataType    string `json:"data_type"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// NewRecord builds a Record from raw provider fields, filling every missing
// field with its default. Dates are normalized with NormalizeDate and data
// classes are comma-joined
func NewRecord(source, name, date, location string, dataClasses []string, description string) Record {
	r := Record{
		ServiceName: strings.TrimSpace(name),
		BreachDate:  NormalizeDate(date),
		Location:    strings.TrimSpace(location),
		DataType:    JoinDataClasses(dataClasses),
		Description: strings.TrimSpace(description),
		Source:      strings.TrimSpace(source),
	}
	return r.WithDefaults()
}

// WithDefaults returns a copy of r with every empty field replaced by its
// default value
func (r Record) WithDefaults() Record {
	if r.ServiceName == "" {
		r.ServiceName = Unknown
	}
	if r.BreachDate == "" {
		r.BreachDate = Unknown
	}
	if r.Location == "" {
		r.Location = Unknown
	}
	if r.DataType == "" {
		r.DataType = Unknown
	}
	if r.Description == "" {
		r.Description = DefaultDescription
	}
	if r.Source == "" {
		r.Source = Unknown
	}
	return r
}

// JoinDataClasses joins non-blank categories with ", ". An empty result is
// returned as Unknown
func JoinDataClasses(classes []string) string {
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return Unknown
	}
	return strings.Join(parts, ", ")
}

// dateLayouts are tried in order; partial dates resolve to the first day of
// the period
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01",
	"2006/01/02",
	"2006",
}

// NormalizeDate converts a provider date into "YYYY-MM-DD". Empty or
// unparseable input yields Unknown
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, Unknown) {
		return Unknown
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return Unknown
}
