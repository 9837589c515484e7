package wumanber

import "bytes"

// findLeftmost returns the first index of needle in haystack, or -1.
// An empty needle is found at 0.
func findLeftmost(haystack, needle []byte) int {
	return bytes.Index(haystack, needle)
}

// findRightmost returns the last index of needle in haystack, or -1.
// An empty needle is found at len(haystack).
func findRightmost(haystack, needle []byte) int {
	return bytes.LastIndex(haystack, needle)
}
