package ftpserver

import (
	"os"

	"github.com/spf13/afero"
)

// fsOps is the thin afero-backed filesystem layer every handler, the path
// resolver's callers, and the transfer engine go through. Centralising the
// afero.Fs calls here grounds spec.md's "external filesystem primitive"
// collaborator in one place instead of scattering them across handlers,
// the way the teacher library spreads them through its ClientDriver calls.
type fsOps struct {
	fs afero.Fs
}

func newFSOps(fs afero.Fs) *fsOps {
	return &fsOps{fs: fs}
}

// NewFSOps builds the filesystem layer a Server is constructed with, from
// any afero.Fs (an OS-backed tree for production, an in-memory one for
// tests).
func NewFSOps(fs afero.Fs) *fsOps { //nolint:revive
	return newFSOps(fs)
}

func (o *fsOps) Stat(path string) (os.FileInfo, error) {
	return o.fs.Stat(path)
}

func (o *fsOps) Open(path string) (afero.File, error) {
	return o.fs.Open(path)
}

func (o *fsOps) OpenFile(path string, flag int, perm os.FileMode) (afero.File, error) {
	return o.fs.OpenFile(path, flag, perm)
}

func (o *fsOps) Mkdir(path string, perm os.FileMode) error {
	return o.fs.Mkdir(path, perm)
}

func (o *fsOps) Remove(path string) error {
	return o.fs.Remove(path)
}

// RemoveDir removes a directory non-recursively, so RMD on a non-empty
// directory fails instead of deleting its contents.
func (o *fsOps) RemoveDir(path string) error {
	return o.fs.Remove(path)
}

func (o *fsOps) Rename(oldPath, newPath string) error {
	return o.fs.Rename(oldPath, newPath)
}

// ReadDir lists the contents of path, re-listing and relying on the
// caller to filter down to a single entry when the target is a file (as
// a bare-file LIST target needs a single-entry listing).
func (o *fsOps) ReadDir(path string) ([]os.FileInfo, error) {
	dir, err := o.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	return dir.Readdir(-1)
}

// Readlink returns the target of path if it is a symlink and the backing
// afero.Fs supports reading them (only afero.OsFs does; afero.MemMapFs
// has no symlink concept). The bool reports whether the link target was
// read successfully.
func (o *fsOps) Readlink(path string) (string, bool) {
	reader, ok := o.fs.(afero.LinkReader)
	if !ok {
		return "", false
	}

	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return "", false
	}

	return target, true
}
