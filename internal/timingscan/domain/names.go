package domain

import "strings"

// PathComponent replaces characters that are not safe in a path component. Target and subtask
// names are stored under this form, so two names must not map to the same component.
func PathComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		default:
			return r
		}
	}, s)
}
