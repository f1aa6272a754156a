package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is the canonical string form of an entity identifier.
//
// Plain string identifiers keep their stored bytes, so an ID read from a store
// can be sent back to it as a query key unchanged. Document-database ObjectIDs
// are rendered as ObjectId("<24 lowercase hex>"), so an ObjectID never equals a
// plain string carrying the same hex digits. Compare IDs with ==.
type ID string

const (
	objectIDPrefix = `ObjectId("`
	objectIDSuffix = `")`
)

// StringID wraps a stored string identifier. Case and padding are significant.
func StringID(raw string) ID {
	return ID(raw)
}

// ObjectID canonicalises the hex form of a document-database ObjectID.
func ObjectID(hexDigits string) (ID, error) {
	hexDigits = strings.ToLower(strings.TrimSpace(hexDigits))
	if len(hexDigits) != 24 {
		return "", fmt.Errorf("object id %q: want 24 hex digits", hexDigits)
	}
	if _, err := hex.DecodeString(hexDigits); err != nil {
		return "", fmt.Errorf("object id %q: %w", hexDigits, err)
	}
	return ID(objectIDPrefix + hexDigits + objectIDSuffix), nil
}

// ParseID reads a caller-supplied identifier, accepting both the
// ObjectId("...") rendering and plain strings. Surrounding whitespace is
// dropped; hyphenated UUIDs must be written in the case they are stored in.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, objectIDPrefix) && strings.HasSuffix(raw, objectIDSuffix) {
		return ObjectID(raw[len(objectIDPrefix) : len(raw)-len(objectIDSuffix)])
	}
	return StringID(raw), nil
}

// IsObjectID reports whether the identifier came from an ObjectID.
func (id ID) IsObjectID() bool {
	return strings.HasPrefix(string(id), objectIDPrefix) && strings.HasSuffix(string(id), objectIDSuffix)
}

// Hex returns the ObjectID hex digits, or "" for string identifiers.
func (id ID) Hex() string {
	if !id.IsObjectID() {
		return ""
	}
	s := string(id)
	return s[len(objectIDPrefix) : len(s)-len(objectIDSuffix)]
}

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return id == "" }

func (id ID) String() string { return string(id) }
