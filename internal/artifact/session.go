package artifact

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultMarker is the directory under which the agent keeps one
// subdirectory per session.
const DefaultMarker = "brain"

// Resolver maps metadata file paths to session identifiers.
type Resolver struct {
	Marker string
	// RequireGUID rejects session directories whose name is not a UUID.
	RequireGUID bool
}

// Resolve returns the path segment that follows the last marker directory.
// The final path segment is never treated as the marker.
func (r Resolver) Resolve(path string) (string, bool) {
	segments, i, ok := r.locate(path)
	if !ok {
		return "", false
	}
	return segments[i+1], true
}

// SessionDir returns the directory of the session that owns path: the
// marker directory joined with the session id.
func (r Resolver) SessionDir(path string) string {
	segments, i, ok := r.locate(path)
	if !ok {
		return ""
	}
	return filepath.FromSlash(strings.Join(segments[:i+2], "/"))
}

// locate splits path and returns the index of the last marker segment
// followed by a valid session id.
func (r Resolver) locate(path string) ([]string, int, bool) {
	marker := r.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] != marker {
			continue
		}
		id := segments[i+1]
		if id == "" {
			return nil, 0, false
		}
		if r.RequireGUID {
			if _, err := uuid.Parse(id); err != nil {
				return nil, 0, false
			}
		}
		return segments, i, true
	}
	return nil, 0, false
}
