package ftpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dateFormatListRecent is the one and only LIST timestamp format spec.md
// §4.9 specifies: "%b %d %H:%M", unconditionally, with no age-based
// switch to a year-bearing format.
const dateFormatListRecent = "Jan 02 15:04"

// listTypeChar maps a file's mode to one of the seven type letters spec.md
// §4.9 enumerates: "-dlcbps".
func listTypeChar(mode os.FileMode) byte {
	switch {
	case mode&os.ModeDir != 0:
		return 'd'
	case mode&os.ModeSymlink != 0:
		return 'l'
	case mode&os.ModeNamedPipe != 0:
		return 'p'
	case mode&os.ModeSocket != 0:
		return 's'
	case mode&os.ModeCharDevice != 0:
		return 'c'
	case mode&os.ModeDevice != 0:
		return 'b'
	default:
		return '-'
	}
}

// listPermString renders the nine rwx/- permission characters for mode.
func listPermString(mode os.FileMode) string {
	const chars = "rwxrwxrwx"

	perm := mode.Perm()

	var b strings.Builder

	for i := 0; i < 9; i++ {
		bit := os.FileMode(1 << uint(8-i))
		if perm&bit != 0 {
			b.WriteByte(chars[i])
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}

// fileListLine formats one Unix long-format LIST line for info, per
// spec.md §4.9:
//
//	<type><perms> <nlink> <user> <group> <size> <Mon DD HH:MM> <name>[ -> <target>]
//
// dirReal is the absolute OS path of the directory info was read from, used
// to resolve a symlink's target via fs.
func fileListLine(fs *fsOps, dirReal string, info os.FileInfo) string {
	mode := info.Mode()

	name := info.Name()
	if mode&os.ModeSymlink != 0 {
		if target, ok := fs.Readlink(filepath.Join(dirReal, info.Name())); ok {
			name = name + " -> " + target
		}
	}

	return fmt.Sprintf(
		"%c%s %3d %s %s %12d %s %s",
		listTypeChar(mode),
		listPermString(mode),
		1,
		"ftp",
		"ftp",
		info.Size(),
		info.ModTime().Format(dateFormatListRecent),
		name,
	)
}

// formatLISTLines renders entries as CRLF-terminated ls -l style lines.
func formatLISTLines(fs *fsOps, dirReal string, entries []os.FileInfo) []byte {
	var b strings.Builder

	for _, e := range entries {
		b.WriteString(fileListLine(fs, dirReal, e))
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}

// joinCRLF joins lines into a CRLF-terminated block, one line per entry.
func joinCRLF(lines []string) []byte {
	var b strings.Builder

	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}
