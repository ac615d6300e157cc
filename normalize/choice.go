package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key lower-cases v, turns underscores into spaces, collapses runs of
// whitespace and trims.
func Key(v any) string {
	s := strings.ToLower(String(v))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Fold strips combining accents ("revisión" -> "revision").
func Fold(s string) string {
	// A chained transformer keeps state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Choices maps normalized variants to canonical display values.
// Adding a synonym is a change to the variant table only.
type Choices struct {
	exact  map[string]string
	folded map[string]string
	values []string
}

// NewChoices builds a lookup from variant -> canonical value. Variant keys
// go through Key, so callers may write them in any case.
func NewChoices(variants map[string]string) Choices {
	c := Choices{
		exact:  make(map[string]string, len(variants)),
		folded: make(map[string]string, len(variants)),
	}
	seen := make(map[string]bool)
	for variant, canonical := range variants {
		k := Key(variant)
		c.exact[k] = canonical
		c.folded[Fold(k)] = canonical
		if !seen[canonical] {
			seen[canonical] = true
			c.values = append(c.values, canonical)
		}
	}
	sort.Strings(c.values)
	return c
}

// Lookup reports the canonical value for v, if any.
func (c Choices) Lookup(v any) (string, bool) {
	k := Key(v)
	if k == "" {
		return "", false
	}
	if canonical, ok := c.exact[k]; ok {
		return canonical, true
	}
	canonical, ok := c.folded[Fold(k)]
	return canonical, ok
}

// Match returns the canonical value for v, or def when nothing matches.
func (c Choices) Match(v any, def string) string {
	if canonical, ok := c.Lookup(v); ok {
		return canonical
	}
	return def
}

// Values lists the distinct canonical values, sorted.
func (c Choices) Values() []string {
	return append([]string(nil), c.values...)
}

// Choice matches v against an ad-hoc variant table.
func Choice(v any, mapping map[string]string, def string) string {
	return NewChoices(mapping).Match(v, def)
}
