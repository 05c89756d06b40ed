package store

import "strings"

// Shape is one accepted naming convention for record directories.
type Shape struct {
	Name  string
	match func(name string) bool
}

// Shapes are tried in order; the first match names the directory's shape.
// Directories matching none are not record directories.
var Shapes = []Shape{
	{Name: "prefix8", match: hexOfLen(8)},
	{Name: "short7", match: hexOfLen(7)},
	{Name: "full", match: func(s string) bool { return hexOfLen(40)(s) || hexOfLen(64)(s) }},
	{Name: "prefix", match: func(s string) bool { return len(s) >= 4 && len(s) <= 64 && isHex(s) }},
}

// MatchShape case-folds name and returns the prefix and shape it matched.
func MatchShape(name string) (prefix, shape string, ok bool) {
	prefix = strings.ToLower(name)
	for _, s := range Shapes {
		if s.match(prefix) {
			return prefix, s.Name, true
		}
	}
	return "", "", false
}

func hexOfLen(n int) func(string) bool {
	return func(s string) bool {
		return len(s) == n && isHex(s)
	}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
