package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Config overrides the English inflection used in generated descriptions.
type Config struct {
	// PluralOverrides maps a singular word to its plural, e.g. person: people.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
	// SingularOverrides maps a plural word to its singular, e.g. data: datum.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig has no overrides.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
	}
}

// ItemNoun returns the singular, space separated noun for a collection,
// e.g. "page_blocks" becomes "page block".
func (n *Namer) ItemNoun(collection string) string {
	return n.noun(collection, n.config.SingularOverrides, inflection.Singular)
}

// ItemsNoun is the plural form of ItemNoun.
func (n *Namer) ItemsNoun(collection string) string {
	return n.noun(n.ItemNoun(collection), n.config.PluralOverrides, inflection.Plural)
}

// noun inflects only the last word of a snake_case or spaced phrase.
func (n *Namer) noun(phrase string, overrides map[string]string, inflect func(string) string) string {
	words := strings.FieldsFunc(phrase, func(r rune) bool { return r == '_' || r == ' ' })
	if len(words) == 0 {
		return ""
	}
	last := words[len(words)-1]
	if override, ok := overrides[last]; ok {
		words[len(words)-1] = override
	} else {
		words[len(words)-1] = inflect(last)
	}
	return strings.Join(words, " ")
}
