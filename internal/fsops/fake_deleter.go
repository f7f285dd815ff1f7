package fsops

// FakeDeleter implements FS for testing and dry runs
// Records all mutation calls without touching the filesystem
type FakeDeleter struct {
	Calls []string

	// FailOn makes the call whose recorded form matches return the error
	FailOn map[string]error
}

func (f *FakeDeleter) record(call string) error {
	f.Calls = append(f.Calls, call)
	if err, ok := f.FailOn[call]; ok {
		return err
	}
	return nil
}

func (f *FakeDeleter) Remove(path string) error {
	return f.record("rm:" + path)
}

func (f *FakeDeleter) RemoveAll(path string) error {
	return f.record("rmall:" + path)
}

func (f *FakeDeleter) MkdirAll(path string) error {
	return f.record("mkdir:" + path)
}

func (f *FakeDeleter) Rename(oldpath, newpath string) error {
	return f.record("mv:" + oldpath + "->" + newpath)
}
