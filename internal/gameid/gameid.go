package gameid

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded id.
const Length = 26

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generate creates a new time-sortable id: a UUIDv7 encoded as a
// 26-character base32 string. Used for games and rooms.
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system entropy source does
		panic("failed to generate uuid: " + err.Error())
	}
	return encoding.EncodeToString(id[:])
}

// WithPrefix returns a generated id tagged with a short type prefix, e.g.
// "room_01j...".
func WithPrefix(prefix string) string {
	return prefix + "_" + Generate()
}

// Validate checks if an id is valid (26 characters, valid base32)
func Validate(id string) error {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) != Length {
		return fmt.Errorf("id must be exactly %d characters, got %d", Length, len(id))
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	if _, err := encoding.DecodeString(id); err != nil {
		return fmt.Errorf("invalid id encoding: %w", err)
	}
	return nil
}
