package breach

import "strings"

type dedupKey struct {
	service string
	date    string
}

func keyOf(r Record) dedupKey {
	return dedupKey{
		service: strings.ToLower(strings.TrimSpace(r.ServiceName)),
		date:    r.BreachDate,
	}
}

// Merge concatenates the given lists in order and drops every record whose
// (service name, breach date) pair was already seen. Service names compare
// case-insensitively and the first record seen for a pair wins
func Merge(lists ...[]Record) []Record {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[dedupKey]struct{}, total)
	out := make([]Record, 0, total)
	for _, l := range lists {
		for _, r := range l {
			k := keyOf(r)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
