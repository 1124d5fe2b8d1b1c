package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
)

// atomicWriteFile writes data to a temp file in the same directory and renames
// it over path, so readers never observe a partial document.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s.*", filepath.Base(path)))
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanupTmp := true
	defer func() {
		_ = tmp.Close()
		if cleanupTmp {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return eris.Wrap(err, "chmod temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		return eris.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrap(err, "fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "rename temp file into place")
	}
	cleanupTmp = false

	if runtime.GOOS != "windows" {
		if err := fsyncDir(dir); err != nil {
			return eris.Wrap(err, "fsync directory")
		}
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return f.Sync()
}
