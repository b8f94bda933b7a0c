package ftpserver

import (
	"path/filepath"
	"strings"
)

// normalisePath replaces backslashes, collapses duplicate slashes and drops
// a trailing slash unless the whole path is "/".
func normalisePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}

	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}

	return p
}

// resolveVirtualPath turns base (the session's current virtual directory)
// and a user-supplied path into a normalised virtual path. "base"
// is ignored when input is itself absolute-within-session.
func resolveVirtualPath(base, input string) string {
	var joined string

	if strings.HasPrefix(input, "/") {
		joined = input
	} else {
		joined = base + "/" + input
	}

	joined = normalisePath(joined)

	stack := make([]string, 0, strings.Count(joined, "/"))

	for _, tok := range strings.Split(joined, "/") {
		switch tok {
		case "", ".":
			// skip
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, tok)
		}
	}

	if len(stack) == 0 {
		return "/"
	}

	return "/" + strings.Join(stack, "/")
}

// resolveRealPath joins a session root with a normalised virtual path to
// produce the absolute OS path it maps to.
func resolveRealPath(root, virtualPath string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(virtualPath, "/")))
}

// resolve returns both results.
func resolve(root, base, input string) (virtualPath, realPath string) {
	virtualPath = resolveVirtualPath(base, input)
	realPath = resolveRealPath(root, virtualPath)

	return virtualPath, realPath
}
