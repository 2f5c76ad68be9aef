package genre

import "strings"

// DefaultLabels is the built-in genre vocabulary. The catalog accepts any
// label; this set exists so seeding and clients have sensible starting
// choices with consistent casing.
var DefaultLabels = []string{
	"Agile",
	"Classic",
	"Comedy",
	"Crime",
	"Design",
	"Drama",
	"Fantasy",
	"Historical Fiction",
	"Horror",
	"Mystery",
	"Patterns",
	"Poetry",
	"Refactoring",
	"Revolution",
	"Romance",
	"Science Fiction",
	"Thriller",
}

// displayBySlug maps each default label's slug to its display form.
var displayBySlug = func() map[string]string {
	m := make(map[string]string, len(DefaultLabels))
	for _, label := range DefaultLabels {
		m[Slugify(label)] = label
	}
	return m
}()

// Canonicalize returns the display form for a raw genre label when its
// slug matches a default label, and the trimmed input otherwise.
// "science fiction" -> "Science Fiction"; "LitRPG" -> "LitRPG".
func Canonicalize(raw string) string {
	if label, ok := displayBySlug[Slugify(raw)]; ok {
		return label
	}
	return strings.TrimSpace(raw)
}
