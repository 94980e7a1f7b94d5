package submit

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	quotedSegment = regexp.MustCompile(`\[['"]([^'"\]]+)['"]\]`)
	indexSegment  = regexp.MustCompile(`\[(\d+)\]`)
)

// toGJSON converts a JSONPath expression such as $.items[0]['doc id'] into
// gjson syntax (items.0.doc id). Only child and index selectors are
// supported.
func toGJSON(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return "@this"
	}

	path = quotedSegment.ReplaceAllString(path, ".$1")
	path = indexSegment.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

// Extract evaluates a JSONPath expression against body.
func Extract(body []byte, path string) (string, bool) {
	if len(body) == 0 || path == "" {
		return "", false
	}

	result := gjson.GetBytes(body, toGJSON(path))
	if !result.Exists() {
		return "", false
	}
	if result.Type == gjson.Null {
		return "null", true
	}
	return result.String(), true
}

// ExtractAll evaluates every named path. Names whose path did not match are
// returned in missing.
func ExtractAll(body []byte, paths map[string]string) (values map[string]string, missing []string) {
	values = make(map[string]string, len(paths))
	for name, path := range paths {
		if v, ok := Extract(body, path); ok {
			values[name] = v
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return values, missing
}
