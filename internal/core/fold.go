package core

import "golang.org/x/text/cases"

// Fold returns the case-folded form of s. Names of users and rooms are
// compared by their folded form.
func Fold(s string) string {
	// A Caser keeps state between calls, so each caller gets a fresh one.
	return cases.Fold().String(s)
}
