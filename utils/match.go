// Package utils holds small helpers shared across the permission engine.
package utils

import "strings"

// MatchResource reports whether a concrete resource id matches a rule
// pattern. Patterns may contain:
//   - '*' matching any run of characters within a segment,
//   - a trailing "/*" matching the whole subtree,
//   - ':name' parameters matching a single path segment.
//
// A pattern without any of these matches only the identical id.
func MatchResource(resourceID, pattern string) bool {
	if pattern == resourceID || pattern == "*" {
		return true
	}
	return matchPattern(resourceID, pattern)
}

func matchPattern(value, pattern string) bool {
	vIndex, pIndex := 0, 0
	vLen, pLen := len(value), len(pattern)

	for pIndex < pLen {
		switch pattern[pIndex] {
		case '*':
			if pIndex == pLen-1 {
				return true
			}
			for vIndex < vLen && value[vIndex] != '/' {
				vIndex++
			}
			pIndex++
		case ':':
			pIndex++
			for pIndex < pLen && pattern[pIndex] != '/' {
				pIndex++
			}
			// A parameter must consume at least one character.
			if vIndex >= vLen || value[vIndex] == '/' {
				return false
			}
			for vIndex < vLen && value[vIndex] != '/' {
				vIndex++
			}
		default:
			if vIndex < vLen && pattern[pIndex] == value[vIndex] {
				vIndex++
				pIndex++
			} else {
				return false
			}
		}
	}

	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "/*"))
	}
	return vIndex == vLen && pIndex == pLen
}
