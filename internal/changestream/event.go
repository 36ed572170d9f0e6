package changestream

import "github.com/roach88/litesync/internal/row"

// Operation identifies the kind of row mutation.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ChangeEvent describes one committed row mutation. It is never persisted.
//
// For deletes the row is usually gone by the time it is re-read, so Row
// degrades to {"id": <rowid>}.
type ChangeEvent struct {
	Seq       int64
	Operation Operation
	Table     string
	Row       row.Row
}
