package protocols

import (
	"errors"
	"path"
	"regexp"
	"strings"
)

var errOutsideRoot = errors.New("path escapes storage root")

var repeatedSlashes = regexp.MustCompile(`/+`)

func joinPath(parts ...string) string {
	return repeatedSlashes.ReplaceAllString(strings.Join(parts, "/"), "/")
}

// resolvePath joins p onto root and rejects results that climb out of root.
func resolvePath(root, p string) (string, error) {
	full := joinPath(root, p)
	if !contained(root, full) {
		return "", NewPermissionDeniedError(p, errOutsideRoot)
	}
	return full, nil
}

func contained(root, full string) bool {
	base := path.Clean("/" + root)
	cleaned := path.Clean("/" + full)
	if base == "/" {
		return true
	}
	return cleaned == base || strings.HasPrefix(cleaned, base+"/")
}

// samePath reports whether two paths name the same file once cleaned.
func samePath(a, b string) bool {
	return path.Clean("/"+a) == path.Clean("/"+b)
}

func dirname(p string) string {
	return p[:strings.LastIndex(p, "/")+1]
}

// relativePath strips root from a full path; the result has no leading slash.
func relativePath(root, full string) string {
	root = strings.TrimSuffix(joinPath(root), "/")
	return strings.TrimPrefix(strings.TrimPrefix(full, root), "/")
}
