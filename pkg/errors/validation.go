package errors

import (
	"strings"
	"unicode"
)

const (
	maxNameLen = 128
	maxPathLen = 500
)

// ValidateName checks a molecule, particle or body name: non-empty, at most
// 128 bytes, no whitespace or control characters.
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidInput, "%s name is empty", kind)
	case len(name) > maxNameLen:
		return New(ErrCodeInvalidInput, "%s name longer than %d bytes", kind, maxNameLen)
	case strings.IndexFunc(name, isBlankOrControl) >= 0:
		return New(ErrCodeInvalidInput, "%s name %q contains whitespace or control characters", kind, name)
	}
	return nil
}

// ValidateParticleName checks a name as written inside a topology string.
// Besides ValidateName's rules only letters, digits, '_' and the prime
// mark are allowed, since '-', '(' and '[' are topology syntax.
func ValidateParticleName(name string) error {
	if err := ValidateName("particle", name); err != nil {
		return err
	}
	if i := strings.IndexFunc(name, notParticleRune); i >= 0 {
		return New(ErrCodeInvalidTopology, "particle name %q: unexpected %q", name, name[i])
	}
	return nil
}

// ValidatePath rejects empty, overlong or control-character paths.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return New(ErrCodeInvalidPath, "path is empty")
	case len(path) > maxPathLen:
		return New(ErrCodeInvalidPath, "path longer than %d bytes", maxPathLen)
	case strings.IndexFunc(path, unicode.IsControl) >= 0:
		return New(ErrCodeInvalidPath, "path contains control characters")
	}
	return nil
}

func isBlankOrControl(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }

func notParticleRune(r rune) bool {
	return r > unicode.MaxASCII || !(r == '_' || r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r))
}
