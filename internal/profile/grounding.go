package profile

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/jonathan/job-matcher/internal/types"
)

// GroundingError lists profile terms that appear in none of the inputs.
type GroundingError struct {
	Terms []string
}

func (e *GroundingError) Error() string {
	return fmt.Sprintf("profile contains %d term(s) not found in the inputs: %s", len(e.Terms), strings.Join(e.Terms, ", "))
}

// GroundingCheck returns the distinct lowercase tokens of the profile that occur
// in none of the sources, sorted. A nil profile is always grounded.
func GroundingCheck(profile *types.UserProfile, sources ...string) []string {
	if profile == nil {
		return nil
	}

	vocabulary := make(map[string]bool)
	for _, src := range sources {
		for _, tok := range Tokenize(src) {
			vocabulary[tok] = true
		}
	}

	seen := make(map[string]bool)
	var missing []string
	for _, field := range types.ProfileFields {
		value, _ := profile.Field(field)
		for _, tok := range Tokenize(value) {
			if vocabulary[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			missing = append(missing, tok)
		}
	}
	sort.Strings(missing)
	return missing
}

// Tokenize splits text into lowercase runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
