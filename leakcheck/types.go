package leakcheck

import (
	"encoding/json"
	"strings"
)

// Response mirrors the public LeakCheck API body
type Response struct {
	Success bool     `json:"success"`
	Found   int      `json:"found"`
	Fields  []string `json:"fields"`
	Sources []Source `json:"sources"`
	Error   string   `json:"error"`
}

// Source is one breached service. Only name and date are guaranteed; the rest
// are present on some plans and mirrors
type Source struct {
	Name        string     `json:"name"`
	Date        string     `json:"date"`
	Location    string     `json:"location"`
	DataType    StringList `json:"data_type"`
	Description string     `json:"description"`
}

// StringList decodes either a JSON array of strings or a single
// comma-separated string. Non-string array elements are skipped and any
// other shape decodes to an empty list
type StringList []string

func (s *StringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = strings.Split(one, ",")
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = nil
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, r := range raw {
		var item string
		if err := json.Unmarshal(r, &item); err == nil && item != "" {
			list = append(list, item)
		}
	}
	*s = list
	return nil
}
