package hdf5

import (
	"path"
	"strings"
)

// splitPath returns the names along p, ignoring empty components.
func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func joinPath(parent, name string) string {
	return path.Join("/", parent, name)
}

// attrPath names attribute attr of the object at p, as in "/data/m@NA".
func attrPath(p, attr string) string {
	return p + "@" + attr
}
