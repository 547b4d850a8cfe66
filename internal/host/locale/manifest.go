package locale

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLocale rejects identifiers that could not name a manifest entry.
	ErrInvalidLocale = errors.New("invalid locale identifier")
	// ErrLocaleNotFound means the manifest has no entry for the locale.
	ErrLocaleNotFound = errors.New("locale not listed in manifest")
	// ErrManifestMalformed means the locale's active entry is not "<id> UTF-8".
	ErrManifestMalformed = errors.New("malformed manifest entry")
)

const charset = "UTF-8"

// Decision is the outcome of planning a manifest edit.
type Decision int

const (
	// DecisionNotFound: neither an active nor a commented entry exists.
	DecisionNotFound Decision = iota
	// DecisionAlreadyEnabled: an active "<id> UTF-8" entry exists.
	DecisionAlreadyEnabled
	// DecisionEnable: a commented "#<id> UTF-8" entry will be uncommented.
	DecisionEnable
	// DecisionMalformed: an active entry for the locale is not well formed.
	DecisionMalformed
)

func (d Decision) String() string {
	switch d {
	case DecisionNotFound:
		return "not_found"
	case DecisionAlreadyEnabled:
		return "already_enabled"
	case DecisionEnable:
		return "enable"
	case DecisionMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ManifestEdit describes what to do with the manifest for one locale.
type ManifestEdit struct {
	Decision Decision
	// Line is the 1-based line the decision refers to, 0 for not found.
	Line int
	// Entry is the text of that line.
	Entry string
	// Content is the new manifest, set only for DecisionEnable.
	Content []byte
}

// NormalizeLocale strips a trailing UTF-8 charset suffix and validates what
// remains. "en_US.UTF-8", "en_US.utf8" and "en_US" all yield "en_US".
func NormalizeLocale(id string) (string, error) {
	name := stripCharset(strings.TrimSpace(id))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocale)
	}
	for _, r := range name {
		if !validLocaleRune(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidLocale, id)
		}
	}
	return name, nil
}

func validLocaleRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '@' || r == '-':
		return true
	}
	return false
}

func stripCharset(name string) string {
	for _, suffix := range []string{".UTF-8", ".utf8"} {
		if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}

// PlanManifestEdit decides how to enable name in the manifest. An active
// well-formed entry wins over everything; a malformed active entry blocks
// enabling; otherwise the first commented entry is uncommented.
func PlanManifestEdit(content []byte, name string) ManifestEdit {
	lines := strings.Split(string(content), "\n")

	enabled, malformed, commented := -1, -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		isComment := strings.HasPrefix(trimmed, "#")
		body := trimmed
		if isComment {
			body = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}

		fields := strings.Fields(body)
		if len(fields) == 0 || stripCharset(fields[0]) != name {
			continue
		}
		wellFormed := len(fields) == 2 && fields[1] == charset

		switch {
		case isComment:
			if wellFormed && commented < 0 {
				commented = i
			}
		case wellFormed:
			if enabled < 0 {
				enabled = i
			}
		case mentionsUTF8(fields):
			if malformed < 0 {
				malformed = i
			}
		}
	}

	switch {
	case enabled >= 0:
		return ManifestEdit{Decision: DecisionAlreadyEnabled, Line: enabled + 1, Entry: lines[enabled]}
	case malformed >= 0:
		return ManifestEdit{Decision: DecisionMalformed, Line: malformed + 1, Entry: lines[malformed]}
	case commented >= 0:
		entry := lines[commented]
		fields := strings.Fields(strings.TrimLeft(strings.TrimSpace(entry), "#"))
		lines[commented] = strings.Join(fields, " ")
		return ManifestEdit{
			Decision: DecisionEnable,
			Line:     commented + 1,
			Entry:    entry,
			Content:  []byte(strings.Join(lines, "\n")),
		}
	default:
		return ManifestEdit{Decision: DecisionNotFound}
	}
}

// mentionsUTF8 reports whether an active entry is meant to be a UTF-8 one,
// as opposed to a legitimate entry for another charset.
func mentionsUTF8(fields []string) bool {
	if stripCharset(fields[0]) != fields[0] {
		return true
	}
	for _, f := range fields[1:] {
		if f == charset {
			return true
		}
	}
	return false
}
