package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyFor builds a canonical key from resource + sorted params. Keys and values
// are query-escaped so separators inside them cannot make two different
// parameter sets produce the same key
func KeyFor(resource string, params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(parts)

	var b strings.Builder
	b.WriteString(url.QueryEscape(resource))
	b.WriteByte('?')
	b.WriteString(strings.Join(parts, "&"))
	return b.String()
}
