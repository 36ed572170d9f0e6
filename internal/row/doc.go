// Package row defines the flat column→scalar record exchanged between
// litesync engines, plus the canonical encoding used to compare, key and
// digest rows.
//
// Canonical encoding is a JSON-like form with sorted column names and
// type-tagged non-JSON scalars (bytes, times). Two rows are considered
// equal iff their canonical encodings are byte-identical; this is the
// equality SyncWith uses to decide whether a row needs reconciling.
//
// Digests use SHA-256 with domain separation:
//
//	SHA256(domain + 0x00 + data)
//
// so a table checksum can never collide with a row digest.
package row
