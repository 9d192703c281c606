package chat

import (
	"fmt"
	"sort"
	"strings"
)

// MaxThreadNameLen caps sanitized thread names.
const MaxThreadNameLen = 100

// SanitizeThreadName trims whitespace, strips markup-significant characters
// and caps the length. An empty result after sanitization is invalid.
func SanitizeThreadName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '"', '\'', '`':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidThreadName
	}
	if r := []rune(name); len(r) > MaxThreadNameLen {
		name = strings.TrimSpace(string(r[:MaxThreadNameLen]))
	}
	return name, nil
}

// GroupDisplayName derives a thread's display name. A non-empty override
// wins verbatim (already sanitized at write time). Otherwise the name is
// built from the sorted other-participants' first names, deterministically
// for a given participant set.
func GroupDisplayName(override string, others []ParticipantSummary) string {
	if override != "" {
		return override
	}
	if len(others) == 0 {
		return "Group"
	}
	names := make([]string, 0, len(others))
	for _, p := range others {
		n := strings.TrimSpace(p.FirstName)
		if n == "" {
			n = p.DisplayName()
		}
		names = append(names, n)
	}
	sort.Strings(names)
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	case 3:
		return names[0] + ", " + names[1] + ", and " + names[2]
	default:
		return fmt.Sprintf("%s, %s, and %d others", names[0], names[1], len(names)-2)
	}
}

// AvatarInitials returns up to two uppercase initials for a display name.
func AvatarInitials(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "?"
	}
	first := []rune(fields[0])
	initials := strings.ToUpper(string(first[0]))
	if len(fields) > 1 {
		last := []rune(fields[len(fields)-1])
		initials += strings.ToUpper(string(last[0]))
	}
	return initials
}

// Truncate shortens message previews at a rune boundary.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
