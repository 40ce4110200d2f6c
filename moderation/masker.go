// Package moderation masks banned terms in outbound message content
// before it reaches the transport. Marketplaces block contact-bait and
// slurs in DMs; masking happens client-side so the provisional message
// already shows what the server will store.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Masker matches banned terms with an Aho-Corasick automaton over a
// normalized view of the text (lowercased, leet-speak folded,
// separators dropped) so "v1agra" or "v.i.a.g.r.a" still match.
type Masker struct {
	machine  *goahocorasick.Machine
	maskRune rune
}

// NewMasker builds the automaton from the banned-term list. Terms are
// normalized the same way as the scanned text.
func NewMasker(bannedTerms []string, maskRune rune) (*Masker, error) {
	patterns := make([][]rune, 0, len(bannedTerms))
	for _, term := range bannedTerms {
		folded, _ := fold([]rune(term))
		if len(folded) == 0 {
			continue
		}
		patterns = append(patterns, folded)
	}
	if len(patterns) == 0 {
		// No terms configured: the masker passes content through.
		return &Masker{maskRune: maskRune}, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Masker{machine: m, maskRune: maskRune}, nil
}

// Apply replaces every banned span with the mask rune, preserving the
// original length and spacing so cursor positions stay stable.
func (m *Masker) Apply(content string) string {
	if m.machine == nil {
		return content
	}
	original := []rune(content)
	folded, origIdx := fold(original)
	if len(folded) == 0 {
		return content
	}

	hits := m.machine.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return content
	}

	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// origIdx maps folded positions back to the original runes;
		// everything between the first and last matched rune is masked.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = m.maskRune
		}
	}
	return string(original)
}

// fold lowercases, collapses leet substitutions, and drops separator
// runes, returning the folded text plus a position map back into the
// original rune slice.
func fold(input []rune) ([]rune, []int) {
	folded := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		r = unleet(r)
		if isSeparator(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return folded, origIdx
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
