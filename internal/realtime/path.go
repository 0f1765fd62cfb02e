package realtime

import (
	"fmt"
	"strings"
)

// forbidden characters in a path segment. '.' also keeps user paths out of
// the reserved hook namespace.
const forbidden = ".#$[]"

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split validates path and returns its segments.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if strings.ContainsAny(s, forbidden) {
			return nil, fmt.Errorf("%w: %q contains one of %q", ErrInvalidPath, path, forbidden)
		}
	}
	return segs, nil
}

// overlaps reports whether a write at one path can change the value at the other.
func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
