package rel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainBranch   = "relfold/branch/v1"
	DomainRoot     = "relfold/root/v1"
	DomainMutation = "relfold/mutation/v1"
	DomainSchema   = "relfold/schema/v1"
)

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator
// prevents domain/data boundary ambiguity. Data must be canonical JSON
// (MarshalCanonical) for the hash to be a content address.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaSetHash computes the content address of a resolved schema set.
// Resolving identical declarations always yields the same hash, which
// is how synthesis idempotence is checked.
func SchemaSetHash(ss SchemaSet) (string, error) {
	canonical, err := ss.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("SchemaSetHash: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainSchema, canonical), nil
}

// MustSchemaSetHash is like SchemaSetHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSchemaSetHash(ss SchemaSet) string {
	hash, err := SchemaSetHash(ss)
	if err != nil {
		panic(err)
	}
	return hash
}

// MutationHash computes the content address of a mutation record.
// Absent components are omitted from the hashed form, so a create's
// identity never depends on selector or patch keys. Returns an error
// for functional updates: an Updater has no canonical form.
func MutationHash(m Mutation) (string, error) {
	if m.Apply != nil {
		return "", fmt.Errorf("MutationHash: functional updater has no canonical form")
	}

	obj := Object{
		"op":     String(m.Op),
		"entity": String(m.Entity),
		"seq":    Int(m.Seq),
	}
	if m.Payload != nil {
		obj["payload"] = m.Payload
	}
	if m.IDs != nil {
		obj["ids"] = Array(m.IDs)
	}
	if m.Patch != nil {
		obj["patch"] = m.Patch
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MutationHash: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainMutation, canonical), nil
}

// MustMutationHash is like MutationHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMutationHash(m Mutation) string {
	hash, err := MutationHash(m)
	if err != nil {
		panic(err)
	}
	return hash
}
