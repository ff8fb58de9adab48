package peek

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// NewCheckGrid creates one [Check] per combination of dimension values.
//
// urlTemplate uses text/template syntax with the dimension names as keys.
// Values are query-escaped before interpolation and a key missing from the
// dimensions is an error. Every generated check gets the same opts.
//
// Example:
//
//	checks, err := peek.NewCheckGrid(
//	    "https://{{.env}}.example.com/{{.svc}}/health",
//	    map[string][]string{
//	        "env": {"prod", "staging"},
//	        "svc": {"api", "web"},
//	    },
//	    peek.WithInterval(time.Minute),
//	)
//	// 4 checks, usable with WithChecks(checks...)
func NewCheckGrid(urlTemplate string, dims map[string][]string, opts ...CheckOption) ([]Check, error) {
	if strings.TrimSpace(urlTemplate) == "" {
		return nil, errors.New("URL template required")
	}
	if len(dims) == 0 {
		return nil, errors.New("at least one dimension required")
	}
	for name, values := range dims {
		if len(values) == 0 {
			return nil, fmt.Errorf("dimension %q has no values", name)
		}
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if v == "" {
				return nil, fmt.Errorf("dimension %q has an empty value", name)
			}
			if seen[v] {
				return nil, fmt.Errorf("dimension %q has duplicate value %q", name, v)
			}
			seen[v] = true
		}
	}

	tmpl, err := template.New("url").Option("missingkey=error").Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	combinations := cartesianProduct(dims)
	checks := make([]Check, 0, len(combinations))
	for _, combo := range combinations {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, queryEscapeMap(combo)); err != nil {
			return nil, fmt.Errorf("template execution failed for %v: %w", combo, err)
		}

		c, err := NewCheck(buf.String(), opts...)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", buf.String(), err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are iterated in sorted order, values in their given order.
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []map[string]string{{}}
	for _, key := range keys {
		next := make([]map[string]string, 0, len(result)*len(dims[key]))
		for _, combo := range result {
			for _, v := range dims[key] {
				c := make(map[string]string, len(combo)+1)
				for k, existing := range combo {
					c[k] = existing
				}
				c[key] = v
				next = append(next, c)
			}
		}
		result = next
	}
	return result
}

func queryEscapeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = url.QueryEscape(v)
	}
	return out
}
