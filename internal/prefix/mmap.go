package prefix

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// mappedFile wraps an mmap.MMap with its backing *os.File so both can
// be released together.
type mappedFile struct {
	m mmap.MMap
	f *os.File
}

func (m *mappedFile) Bytes() []byte { return m.m }

func (m *mappedFile) Close() error {
	err := m.m.Unmap()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// mmapFile memory-maps path read-only. Callers treat any error as
// "unsupported on this platform" and degrade to skipping the binary
// scan (spec §4.7 "On platforms that do not support this scan, the
// step is skipped with a log note").
func mmapFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, os.ErrInvalid
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mappedFile{m: m, f: f}, nil
}
