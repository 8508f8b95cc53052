package accel

import (
	"strings"

	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Every family places the version word at 0x00 and the packed name/type code at 0x04.
const (
	OffsetVersion  = 0x00
	OffsetTypeCode = 0x04

	typeCodeMask  = 0x3FFFFFFF
	nameChars     = 6
	nameCharBits  = 5
	nameTerm      = 26
	versionDigits = 8
)

// Identity is the decoded fixed identification of an accelerator instance.
type Identity struct {
	Version string `json:"version"`
	Type    string `json:"type"`
	ID      uint8  `json:"id"`
}

// CheckIdentity reads the type code and fails if its low 30 bits are not want.
// It performs no writes.
func CheckIdentity(rf mmio.RegisterFile, family string, want uint32) (Identity, error) {
	name := rf.Read32(OffsetTypeCode)
	if name&typeCodeMask != want {
		return Identity{}, &IdentityError{Family: family, Want: want, Got: name & typeCodeMask}
	}
	return DecodeIdentity(rf.Read32(OffsetVersion), name), nil
}

// DecodeIdentity unpacks the version nibbles and the 5-bit-per-letter type name.
func DecodeIdentity(version, name uint32) Identity {
	var v strings.Builder
	for i := 0; i < versionDigits; i++ {
		v.WriteByte('0' + byte(version&0xF))
		version >>= 4
	}

	var n strings.Builder
	word := name
	for i := 0; i < nameChars; i++ {
		c := byte(word & 0x1F)
		if c == nameTerm {
			break
		}
		n.WriteByte('a' + c)
		word >>= nameCharBits
	}

	return Identity{
		Version: v.String(),
		Type:    n.String(),
		ID:      uint8(name >> 30),
	}
}
