package fsops

import "os"

// OSDeleter implements FS using real os package calls
type OSDeleter struct{}

func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}

func (OSDeleter) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (OSDeleter) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Rename never falls back to copy-then-delete; a cross-device move fails
func (OSDeleter) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
