// Package filex holds file helpers for content received over the network.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by Spool when the source has more than limit bytes.
var ErrTooLarge = errors.New("content too large")

// EnsureSubdDir creates dirName under the working directory (or dirName
// itself when it is absolute) and returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	dir := dirName
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dirName)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Spool copies r into a new temporary file in dir, teeing every byte to w
// (nil means no tee). At most limit bytes are accepted. On success the file
// is rewound and returned with the number of bytes written; the caller
// releases it with Release.
func Spool(dir string, r io.Reader, limit int64, w io.Writer) (*os.File, int64, error) {
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool file: %w", err)
	}

	dst := io.Writer(f)
	if w != nil {
		dst = io.MultiWriter(f, w)
	}

	// one extra byte tells an exact fit from an oversized source
	n, err := io.Copy(dst, io.LimitReader(r, limit+1))
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		Release(f)
		return nil, 0, err
	}
	return f, n, nil
}

// Release closes and removes a spooled file.
func Release(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
}
