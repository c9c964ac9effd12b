//go:build darwin

package files

import (
	"io/fs"
	"syscall"
	"time"
)

// Created returns the birth time of fi, or its modification time when the
// stat data carries none.
func Created(fi fs.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		sec, nsec := st.Birthtimespec.Unix()
		if sec > 0 {
			return time.Unix(sec, nsec)
		}
	}
	return fi.ModTime()
}
