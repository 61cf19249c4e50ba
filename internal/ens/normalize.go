package ens

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned for names the normalizer rejects.
var ErrInvalidName = errors.New("invalid ENS name")

// Normalizer maps a user-supplied name to the form that is hashed.
type Normalizer func(name string) (string, error)

// NFCNormalizer lower-cases and NFC-normalizes name, then rejects empty
// labels, whitespace, control characters and invalid UTF-8. It does not
// implement the full ENSIP-15 rules.
func NFCNormalizer(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	out := norm.NFC.String(cases.Lower(language.Und).String(strings.TrimSpace(name)))
	if out == "" {
		return "", nil
	}
	for i, label := range strings.Split(out, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: %q has an empty label at position %d", ErrInvalidName, name, i)
		}
		for _, r := range label {
			if unicode.IsSpace(r) || unicode.IsControl(r) || r == utf8.RuneError {
				return "", fmt.Errorf("%w: %q contains %U", ErrInvalidName, name, r)
			}
		}
	}
	return out, nil
}

// Identity hashes names exactly as given.
func Identity(name string) (string, error) { return name, nil }
