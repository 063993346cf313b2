package hibp

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/briangreenhill/leaksmap/breach"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Normalize converts a breachedaccount response into breach records. A 404
// means the account is not pwned and yields an empty list
func Normalize(status int, body []byte) ([]breach.Record, error) {
	if status == http.StatusNotFound {
		return []breach.Record{}, nil
	}

	var breaches []Breach
	if err := json.Unmarshal(body, &breaches); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]breach.Record, 0, len(breaches))
	for _, b := range breaches {
		name := b.Name
		if strings.TrimSpace(name) == "" {
			name = b.Title
		}
		records = append(records, breach.NewRecord(
			Name,
			name,
			b.BreachDate,
			breach.Unknown,
			b.DataClasses,
			StripHTML(b.Description),
		))
	}
	return records, nil
}

// StripHTML removes markup from an HIBP description and unescapes entities
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
