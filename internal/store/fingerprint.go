package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DomainCompile prefixes compile fingerprints. The version suffix allows a
// later change of the hashed layout without colliding with old cache rows.
const DomainCompile = "fetchql/compile/v1"

// Fingerprint identifies a compilation input: the FQL source plus any
// primary-key overrides that change the emitted XML.
//
// Format: SHA256(domain + 0x00 + NFC(source) [+ 0x00 + entity + "=" + pk]...)
// with overrides sorted by entity. fetchxml.Compile normalizes to NFC
// as well, so sources sharing a fingerprint compile to the same XML.
func Fingerprint(source string, primaryKeys map[string]string) string {
	h := sha256.New()
	h.Write([]byte(DomainCompile))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(source)))

	entities := make([]string, 0, len(primaryKeys))
	for entity := range primaryKeys {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	for _, entity := range entities {
		h.Write([]byte{0x00})
		h.Write([]byte(entity + "=" + primaryKeys[entity]))
	}

	return hex.EncodeToString(h.Sum(nil))
}
