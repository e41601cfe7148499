package access

import "fmt"

// Alias maps a mention token to the document it refers to. Name is matched
// against lowercased queries, so it should be lowercase.
type Alias struct {
	Name     string `yaml:"name"`
	Document string `yaml:"document"`
}

// DefaultAliases returns the built-in mention vocabulary. Underscore forms come
// before spaced forms; callers report mentions in this order.
func DefaultAliases() []Alias {
	letters := []string{"a", "b", "c", "d", "e"}
	aliases := make([]Alias, 0, len(letters)*2)
	for _, letter := range letters {
		aliases = append(aliases, Alias{Name: "company_" + letter, Document: CompanyDocument(letter)})
	}
	for _, letter := range letters {
		aliases = append(aliases, Alias{Name: "company " + letter, Document: CompanyDocument(letter)})
	}
	return aliases
}

// ValidateAliases rejects aliases with an empty name or document.
func ValidateAliases(aliases []Alias) error {
	for i, alias := range aliases {
		if alias.Name == "" {
			return fmt.Errorf("%w: alias %d", ErrEmptyAliasName, i)
		}
		if alias.Document == "" {
			return fmt.Errorf("%w: alias %q has no document", ErrInvalidPolicy, alias.Name)
		}
	}
	return nil
}
