package leakcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/briangreenhill/leaksmap/breach"
)

// notFound is the error text LeakCheck sends with success=false when the
// address has no known breaches
const notFound = "not found"

// Normalize converts a LeakCheck response body into breach records. A
// "Not found" answer is a valid empty result; any other success=false answer
// is an error
func Normalize(body []byte) ([]breach.Record, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if strings.EqualFold(msg, notFound) {
			return []breach.Record{}, nil
		}
		if msg == "" {
			msg = "success=false"
		}
		return nil, fmt.Errorf("request rejected: %s", msg)
	}

	records := make([]breach.Record, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		records = append(records, breach.NewRecord(
			Name,
			s.Name,
			s.Date,
			s.Location,
			s.DataType,
			describe(s),
		))
	}
	return records, nil
}

func describe(s Source) string {
	if d := strings.TrimSpace(s.Description); d != "" {
		return d
	}
	if name := strings.TrimSpace(s.Name); name != "" {
		return "Data breach detected at " + name
	}
	return breach.DefaultDescription
}
