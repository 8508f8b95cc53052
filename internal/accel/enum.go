package accel

import (
	"fmt"
	"strings"
)

// ParseEnum resolves a case-insensitive name against a family's name table.
// Enumerated descriptor fields use it to implement encoding.TextUnmarshaler.
func ParseEnum[T comparable](names map[T]string, what string, b []byte, out *T) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for v, name := range names {
		if name == s {
			*out = v
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, s)
}

// EnumString renders v by name, or as Type(n) when it has none.
func EnumString[T ~uint8](names map[T]string, typ string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("%s(%d)", typ, uint8(v))
}
