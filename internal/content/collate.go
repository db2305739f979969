package content

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Locale is the collation language for titles. The corpus is German.
var Locale = language.German

// SortByTitle sorts items in place by the string returned from title, using
// locale-aware collation. Equal titles keep their relative order.
func SortByTitle[T any](items []T, title func(T) string) {
	// collate.Collator is not safe for concurrent use.
	c := collate.New(Locale)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(title(items[i]), title(items[j])) < 0
	})
}
