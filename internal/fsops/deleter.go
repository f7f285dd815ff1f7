package fsops

// Deleter abstracts filesystem delete operations
// Enables mocking in tests and dry-run mode
type Deleter interface {
	Remove(path string) error
	RemoveAll(path string) error
}

// Mover abstracts the relocation of a file into a mirrored destination tree
type Mover interface {
	MkdirAll(path string) error
	Rename(oldpath, newpath string) error
}

// FS combines every mutation the sanitiser performs
type FS interface {
	Deleter
	Mover
}
