//go:build !darwin

package files

import (
	"io/fs"
	"time"
)

// Created returns the modification time of fi. Birth time is not exposed
// portably outside darwin.
func Created(fi fs.FileInfo) time.Time {
	return fi.ModTime()
}
