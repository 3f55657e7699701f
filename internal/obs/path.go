package obs

import "strings"

// collections whose next path segment is a resource identifier.
var idCollections = map[string]struct{}{
	"tasks":         {},
	"departments":   {},
	"users":         {},
	"notifications": {},
}

// fixed sub-paths of those collections that are not identifiers.
var fixedSegments = map[string]struct{}{
	"unread_count": {},
	"read_all":     {},
}

// CanonicalPath collapses resource identifiers so metric labels stay low-cardinality:
// /v1/tasks/01J.../comments becomes /v1/tasks/:id/comments.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if _, fixed := fixedSegments[segments[i]]; fixed {
			continue
		}
		if _, ok := idCollections[segments[i-1]]; ok {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}
