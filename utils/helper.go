package utils

import (
	"strings"
)

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// SplitList splits a cell holding several values ("INV1, INV2" or "A/B").
// Empty parts are dropped.
func SplitList(s string, seps ...rune) []string {
	if len(seps) == 0 {
		seps = []rune{','}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		for _, sep := range seps {
			if r == sep {
				return true
			}
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstNonBlank returns the first value that is not blank or "N/A".
func FirstNonBlank(values ...string) string {
	for _, v := range values {
		if !IsBlank(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
