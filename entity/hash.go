package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ContentHash computes the deterministic content hash of an entity under its
// descriptor. Only hashable payload fields, the entity name, and the variant
// text content participate; non-hashable fields can change freely without
// forcing an UPDATE.
//
// The hash is stable across JSON round-trips: every value is normalized
// through JSON before hashing, so an entity reconstructed from the archive
// hashes identically to the original.
func ContentHash(e *Entity, d *Descriptor) (string, error) {
	parts := map[string]interface{}{
		"name": e.Name,
	}

	for _, field := range d.HashableFields() {
		if value, ok := e.Payload[field]; ok {
			parts["payload."+field] = value
		}
	}

	if e.Chunk != nil {
		parts["text"] = e.Chunk.TextualRepresentation
	}
	if e.Email != nil {
		parts["email.subject"] = e.Email.Subject
		parts["email.from"] = e.Email.From
		parts["email.to"] = strings.Join(e.Email.To, ",")
	}
	if e.Code != nil {
		parts["code.commit"] = e.Code.CommitSHA
	}

	canonical, err := canonicalJSON(parts)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize entity %s: %w", e.SourceEntityID, err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON produces a byte-stable JSON encoding of v. The value is
// round-tripped through JSON first so that Go-side type differences (int vs
// float64, *time.Time vs RFC 3339 string) collapse to their JSON form before
// marshaling; encoding/json then sorts map keys, giving a canonical byte
// sequence.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}
