package file

import "os"

// Exists returns a bool indicating if the specified file exists and can be
// stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
