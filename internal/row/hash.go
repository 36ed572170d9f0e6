package row

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Domain prefixes for digests. Version suffix enables future algorithm migration.
const (
	DomainRow   = "litesync/row/v1"
	DomainTable = "litesync/table/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the content digest of a single row.
func Digest(r Row) (string, error) {
	b, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("row digest: %w", err)
	}
	return hashWithDomain(DomainRow, b), nil
}

// Checksum returns a digest over a set of rows that is independent of the
// order they are passed in. Rows are ordered by their id key.
func Checksum(rows []Row) (string, error) {
	type keyed struct {
		key string
		enc []byte
	}
	entries := make([]keyed, 0, len(rows))
	for _, r := range rows {
		id, _ := r.ID()
		k, err := Key(id)
		if err != nil {
			return "", fmt.Errorf("table checksum: %w", err)
		}
		enc, err := MarshalCanonical(r)
		if err != nil {
			return "", fmt.Errorf("table checksum: %w", err)
		}
		entries = append(entries, keyed{key: k, enc: enc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	var data []byte
	for _, e := range entries {
		data = append(data, e.enc...)
		data = append(data, '\n')
	}
	return hashWithDomain(DomainTable, data), nil
}
