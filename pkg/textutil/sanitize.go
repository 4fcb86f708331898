// Package textutil normalizes user-supplied free text before it is stored.
package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Clean strips all markup and trims surrounding whitespace. Entities produced
// by the sanitizer are unescaped so plain text round-trips unchanged.
func Clean(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(value)))
}

// CleanAll applies Clean to each value and drops the ones left empty.
func CleanAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if cleaned := Clean(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
