package http

import "strings"

// ToGJSONPath converts a simple JSONPath expression to gjson syntax.
//
//	$.users[0].name  ->  users.0.name
//	$['name']        ->  name
//	$                ->  @this
//
// Paths that do not start with "$" are returned unchanged.
func ToGJSONPath(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	for _, q := range []string{"'", `"`} {
		path = strings.ReplaceAll(path, "["+q, ".")
		path = strings.ReplaceAll(path, q+"]", "")
	}
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	return strings.TrimPrefix(path, ".")
}
