//go:build !unix

package walk

// deviceID is unavailable off unix; OneFilesystem then has no effect.
func deviceID(string) (uint64, bool) {
	return 0, false
}

// FileID is unavailable off unix; hard links are not collapsed.
func FileID(string) (dev, ino uint64, ok bool) {
	return 0, 0, false
}
