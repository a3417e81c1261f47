package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns a stable hex digest used for cheap change detection
// (e.g. whether a company's stored corpus differs from the last scored one).
// Not used for anything security sensitive.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
